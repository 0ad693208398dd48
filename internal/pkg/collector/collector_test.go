package collector

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sitemonitor/internal/pkg/config"
	"sitemonitor/internal/pkg/logger"
	"sitemonitor/internal/pkg/models"
)

func init() {
	logger.Log = zap.NewNop()
}

type fakeCollector struct {
	category models.Category
	collect  func(ctx context.Context, siteURL string) (models.HealthCheckResult, error)
}

func (f *fakeCollector) Category() models.Category { return f.category }

func (f *fakeCollector) Collect(ctx context.Context, siteURL string) (models.HealthCheckResult, error) {
	return f.collect(ctx, siteURL)
}

// Returns a collector producing a healthy result for its category after delay.
func healthy(category models.Category, delay time.Duration) *fakeCollector {
	return &fakeCollector{category: category, collect: func(ctx context.Context, siteURL string) (models.HealthCheckResult, error) {
		time.Sleep(delay)
		res := Default(category, siteURL, time.Now(), "")
		res.Status = models.StatusHealthy
		res.Degraded = false
		return res, nil
	}}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.FetchTimeout = 200 * time.Millisecond
	return cfg
}

func allHealthy(except models.Category) []Collector {
	var out []Collector
	for _, c := range models.Categories() {
		if c != except {
			out = append(out, healthy(c, 0))
		}
	}
	return out
}

func TestRunAllReturnsEveryCategory(t *testing.T) {
	runner := NewRunner(testConfig(), allHealthy("")...)
	results := runner.RunAll(context.Background(), "https://example.nl")

	require.Len(t, results, 5)
	for _, c := range models.Categories() {
		assert.Equal(t, c, results[c].Category)
		assert.False(t, results[c].Degraded, c)
	}
}

func TestRunAllIsolatesPanickingCollector(t *testing.T) {
	collectors := append(allHealthy(models.CategorySitemap), &fakeCollector{
		category: models.CategorySitemap,
		collect: func(context.Context, string) (models.HealthCheckResult, error) {
			panic("sitemap parser exploded")
		},
	})

	results := NewRunner(testConfig(), collectors...).RunAll(context.Background(), "https://example.nl")

	require.Len(t, results, 5)
	sitemap := results[models.CategorySitemap]
	assert.True(t, sitemap.Degraded)
	assert.Equal(t, models.StatusError, sitemap.Status)
	assert.Contains(t, sitemap.Error, "panicked")
	require.NotNil(t, sitemap.Sitemap)
	assert.False(t, sitemap.Sitemap.Valid)

	for _, c := range []models.Category{models.CategorySEO, models.CategoryPerformance, models.CategoryNotFound, models.CategoryIndexing} {
		assert.False(t, results[c].Degraded, c)
	}
}

func TestRunAllSubstitutesOnError(t *testing.T) {
	collectors := append(allHealthy(models.CategoryIndexing), &fakeCollector{
		category: models.CategoryIndexing,
		collect: func(context.Context, string) (models.HealthCheckResult, error) {
			return models.HealthCheckResult{}, errors.New("search console down")
		},
	})

	results := NewRunner(testConfig(), collectors...).RunAll(context.Background(), "https://example.nl")

	idx := results[models.CategoryIndexing]
	assert.True(t, idx.Degraded)
	assert.Equal(t, "search console down", idx.Error)
	require.NotNil(t, idx.Indexing)
	assert.Equal(t, 0.0, idx.Indexing.IndexingRate)
	require.Len(t, idx.Indexing.Errors, 1)
	assert.Equal(t, "Indexing check failed", idx.Indexing.Errors[0].Error)
}

func TestRunAllTimesOutStuckCollector(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	collectors := append(allHealthy(models.CategorySEO), &fakeCollector{
		category: models.CategorySEO,
		collect: func(context.Context, string) (models.HealthCheckResult, error) {
			<-release // ignores its context
			return models.HealthCheckResult{}, nil
		},
	})

	start := time.Now()
	results := NewRunner(testConfig(), collectors...).RunAll(context.Background(), "https://example.nl")

	assert.Less(t, time.Since(start), 2*time.Second)
	seo := results[models.CategorySEO]
	assert.True(t, seo.Degraded)
	assert.Contains(t, seo.Error, "timed out")
	require.NotNil(t, seo.SEO)
	assert.Equal(t, 0, seo.SEO.Score)
}

func TestRunAllRunsConcurrently(t *testing.T) {
	var running, peak int32
	var collectors []Collector
	for _, c := range models.Categories() {
		c := c
		collectors = append(collectors, &fakeCollector{category: c, collect: func(ctx context.Context, siteURL string) (models.HealthCheckResult, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return healthy(c, 0).collect(ctx, siteURL)
		}})
	}

	NewRunner(testConfig(), collectors...).RunAll(context.Background(), "https://example.nl")
	assert.Greater(t, atomic.LoadInt32(&peak), int32(1))
}

func TestRunAllFillsMissingAndMalformed(t *testing.T) {
	collectors := []Collector{
		healthy(models.CategorySEO, 0),
		&fakeCollector{category: models.CategoryPerformance, collect: func(context.Context, string) (models.HealthCheckResult, error) {
			return models.HealthCheckResult{Category: models.CategoryPerformance}, nil
		}},
	}

	results := NewRunner(testConfig(), collectors...).RunAll(context.Background(), "https://example.nl")

	require.Len(t, results, 5)
	assert.False(t, results[models.CategorySEO].Degraded)
	assert.True(t, results[models.CategoryPerformance].Degraded)
	assert.Contains(t, results[models.CategoryPerformance].Error, "no performance payload")
	assert.Equal(t, "no collector registered", results[models.CategoryNotFound].Error)
}

func TestDefaultsAreFullyPopulated(t *testing.T) {
	now := time.Now()
	for _, c := range models.Categories() {
		res := Default(c, "https://example.nl", now, "boom")
		assert.NoError(t, validate(c, res), c)
		assert.Equal(t, models.StatusError, res.Status)
		assert.True(t, res.Degraded)
	}

	perf := DefaultPerformance("https://example.nl", now).Performance
	assert.Equal(t, 8000.0, perf.LCP)
	assert.Equal(t, 1000.0, perf.FID)
	assert.Equal(t, 1.0, perf.CLS)
	assert.Equal(t, 3000.0, perf.TTFB)
}
