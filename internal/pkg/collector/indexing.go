package collector

import (
	"context"
	"time"

	"sitemonitor/internal/pkg/config"
	"sitemonitor/internal/pkg/indexing"
	"sitemonitor/internal/pkg/models"
)

// Reports the share of the site's pages present in the search index.
type IndexingCollector struct {
	source indexing.Source
	tiers  config.Tiers
	now    func() time.Time
}

func NewIndexingCollector(cfg *config.Config, source indexing.Source) *IndexingCollector {
	return &IndexingCollector{source: source, tiers: cfg.IndexingRateTiers(), now: time.Now}
}

func (c *IndexingCollector) Category() models.Category {
	return models.CategoryIndexing
}

func (c *IndexingCollector) Collect(ctx context.Context, siteURL string) (models.HealthCheckResult, error) {
	cov, err := c.source.Coverage(ctx, siteURL)
	if err != nil {
		return models.HealthCheckResult{}, err
	}

	errs := cov.Errors
	if errs == nil {
		errs = []models.IndexingError{}
	}
	status := &models.IndexingStatus{
		TotalPages:   cov.TotalPages,
		IndexedPages: cov.IndexedPages,
		IndexingRate: IndexingRate(cov.IndexedPages, cov.TotalPages),
		Errors:       errs,
	}

	health := models.StatusHealthy
	switch {
	case status.IndexingRate < c.tiers.Critical:
		health = models.StatusCritical
	case status.IndexingRate < c.tiers.Medium:
		health = models.StatusWarning
	}

	return models.HealthCheckResult{
		Category:  models.CategoryIndexing,
		Timestamp: c.now(),
		Status:    health,
		Indexing:  status,
	}, nil
}

// indexed/total clamped to [0,1]; 0 when total is 0.
func IndexingRate(indexed, total int) float64 {
	if total <= 0 || indexed <= 0 {
		return 0
	}
	rate := float64(indexed) / float64(total)
	if rate > 1 {
		return 1
	}
	return rate
}
