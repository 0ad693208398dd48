package models

import "time"

// Output of the aggregator.
type Summary struct {
	OverallScore    int                  `json:"overall_score"`
	RawScore        float64              `json:"raw_score"`
	CategoryScores  map[Category]float64 `json:"category_scores"`
	CriticalIssues  int                  `json:"critical_issues"`
	Recommendations []string             `json:"recommendations"`
}

// One scheduler run. Never modified after the scheduler returns it.
type DailyCheckResult struct {
	RunID     string                         `json:"run_id"`
	SiteURL   string                         `json:"site_url"`
	Timestamp time.Time                      `json:"timestamp"`
	Duration  time.Duration                  `json:"duration"`
	Checks    map[Category]HealthCheckResult `json:"checks"`
	Summary   Summary                        `json:"summary"`
	Alerts    []Alert                        `json:"alerts"`
}
