package collector

import (
	"strings"

	"github.com/pemistahl/lingua-go"
	"go.uber.org/zap"

	"sitemonitor/internal/pkg/logger"
)

// Below this many characters detection is unreliable and skipped.
const minLanguageTextLength = 20

// Detects the language of page text, returning an ISO 639-1 code.
type LanguageDetector interface {
	Detect(text string) (code string, ok bool)
}

type linguaDetector struct {
	detector lingua.LanguageDetector
}

// Creates a detector for the languages a Dutch agency site is likely to publish in.
func NewLanguageDetector() LanguageDetector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(lingua.Dutch, lingua.English, lingua.German, lingua.French).
		Build()
	return &linguaDetector{detector: detector}
}

func (d *linguaDetector) Detect(text string) (string, bool) {
	if len(text) < minLanguageTextLength {
		return "", false
	}
	lang, exists := d.detector.DetectLanguageOf(text)
	if !exists {
		logger.Log.Debug("Language detection failed", zap.Int("text_length", len(text)))
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}
