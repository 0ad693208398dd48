package models

import "time"

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Orders severities, higher is worse. Unknown severities rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Immutable once created. A later alert with the same fingerprint
// supersedes it in the history instead of editing it.
type Alert struct {
	ID          string                 `json:"id"`
	Fingerprint string                 `json:"fingerprint"`
	Category    Category               `json:"category"`
	Severity    Severity               `json:"severity"`
	Title       string                 `json:"title"`
	Message     string                 `json:"message"`
	URL         string                 `json:"url"`
	Timestamp   time.Time              `json:"timestamp"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// Operator bookkeeping kept beside the alert, not inside it.
type AlertStatus struct {
	Acknowledged bool      `json:"acknowledged"`
	Resolved     bool      `json:"resolved"`
	UpdatedAt    time.Time `json:"updated_at"`
}
