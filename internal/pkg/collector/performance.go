package collector

import (
	"context"
	"time"

	"sitemonitor/internal/pkg/models"
	"sitemonitor/internal/pkg/vitals"
)

// Read side of the vitals store.
type VitalsReader interface {
	Average(url string, since time.Time) (models.WebVitals, bool)
	Rate(metric vitals.Metric, value float64) models.Rating
}

// Averages the Core Web Vitals samples reported over the last 24 hours.
type PerformanceCollector struct {
	store VitalsReader
	now   func() time.Time
}

func NewPerformanceCollector(store VitalsReader) *PerformanceCollector {
	return &PerformanceCollector{store: store, now: time.Now}
}

func (c *PerformanceCollector) Category() models.Category {
	return models.CategoryPerformance
}

// With no samples the result is the poor default, marked degraded, and no error.
func (c *PerformanceCollector) Collect(ctx context.Context, siteURL string) (models.HealthCheckResult, error) {
	if err := ctx.Err(); err != nil {
		return models.HealthCheckResult{}, err
	}
	now := c.now()

	avg, ok := c.store.Average("", now.Add(-vitals.Window))
	if !ok {
		res := DefaultPerformance(siteURL, now)
		res.Degraded = true
		res.Error = "no web vitals samples in the last 24h"
		return res, nil
	}
	avg.URL = siteURL

	return models.HealthCheckResult{
		Category:    models.CategoryPerformance,
		Timestamp:   now,
		Status:      c.status(avg),
		Performance: &avg,
	}, nil
}

// Any poor metric is critical, any needing improvement is a warning.
func (c *PerformanceCollector) status(v models.WebVitals) models.Status {
	status := models.StatusHealthy
	for metric, value := range map[vitals.Metric]float64{
		vitals.LCP: v.LCP, vitals.FID: v.FID, vitals.CLS: v.CLS, vitals.TTFB: v.TTFB,
	} {
		switch c.store.Rate(metric, value) {
		case models.RatingPoor:
			return models.StatusCritical
		case models.RatingNeedsImprovement:
			status = models.StatusWarning
		}
	}
	return status
}
