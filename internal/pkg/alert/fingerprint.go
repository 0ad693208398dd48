package alert

import (
	"crypto/sha256"
	"encoding/hex"

	"sitemonitor/internal/pkg/models"
)

// Hex SHA-256 of "category|title". Stable across restarts so persisted
// throttle state stays valid.
func Fingerprint(category models.Category, title string) string {
	sum := sha256.Sum256([]byte(string(category) + "|" + title))
	return hex.EncodeToString(sum[:])
}

// Alert IDs are the category plus a fingerprint prefix.
func alertID(category models.Category, fingerprint string) string {
	return string(category) + "-" + fingerprint[:16]
}
