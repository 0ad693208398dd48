package collector

import (
	"context"
	"time"

	"sitemonitor/internal/pkg/config"
	"sitemonitor/internal/pkg/models"
)

// Read side of the not-found store.
type NotFoundReader interface {
	Analytics(since time.Time) models.NotFoundAnalytics
}

// Summarises 404 hits over the trailing 24 hours.
type NotFoundCollector struct {
	store NotFoundReader
	tiers config.Tiers
	now   func() time.Time
}

func NewNotFoundCollector(cfg *config.Config, store NotFoundReader) *NotFoundCollector {
	return &NotFoundCollector{store: store, tiers: cfg.NotFoundTiers(), now: time.Now}
}

func (c *NotFoundCollector) Category() models.Category {
	return models.CategoryNotFound
}

func (c *NotFoundCollector) Collect(ctx context.Context, _ string) (models.HealthCheckResult, error) {
	if err := ctx.Err(); err != nil {
		return models.HealthCheckResult{}, err
	}
	now := c.now()
	analytics := c.store.Analytics(now.Add(-24 * time.Hour))

	status := models.StatusHealthy
	switch total := float64(analytics.Total); {
	case total >= c.tiers.Critical:
		status = models.StatusCritical
	case total >= c.tiers.Medium:
		status = models.StatusWarning
	}

	return models.HealthCheckResult{
		Category:  models.CategoryNotFound,
		Timestamp: now,
		Status:    status,
		NotFound:  &analytics,
	}, nil
}
