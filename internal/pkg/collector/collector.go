package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"sitemonitor/internal/pkg/config"
	"sitemonitor/internal/pkg/logger"
	"sitemonitor/internal/pkg/metrics"
	"sitemonitor/internal/pkg/models"
)

// One independent health check.
type Collector interface {
	Category() models.Category
	Collect(ctx context.Context, siteURL string) (models.HealthCheckResult, error)
}

// Runs every collector concurrently and tolerates individual failures.
type Runner struct {
	collectors map[models.Category]Collector
	timeout    time.Duration
	now        func() time.Time
}

// Creates a runner enforcing FETCH_TIMEOUT per collector. A later collector
// for the same category replaces an earlier one.
func NewRunner(cfg *config.Config, collectors ...Collector) *Runner {
	r := &Runner{
		collectors: make(map[models.Category]Collector, len(collectors)),
		timeout:    cfg.FetchTimeout,
		now:        time.Now,
	}
	for _, c := range collectors {
		if _, dup := r.collectors[c.Category()]; dup {
			logger.Log.Warn("Replacing collector", zap.String("category", string(c.Category())))
		}
		r.collectors[c.Category()] = c
	}
	return r
}

// Runs all collectors and returns exactly one result per category. A
// collector that errors, panics, times out or is missing is replaced by
// its default result. Never fails.
func (r *Runner) RunAll(ctx context.Context, siteURL string) map[models.Category]models.HealthCheckResult {
	var (
		mu      sync.Mutex
		results = make(map[models.Category]models.HealthCheckResult, len(models.Categories()))
		wg      conc.WaitGroup
	)

	for _, category := range models.Categories() {
		c, ok := r.collectors[category]
		if !ok {
			results[category] = Default(category, siteURL, r.now(), "no collector registered")
			continue
		}
		wg.Go(func() {
			res := r.runOne(ctx, c, siteURL)
			mu.Lock()
			results[category] = res
			mu.Unlock()
		})
	}
	wg.Wait()

	return results
}

func (r *Runner) runOne(ctx context.Context, c Collector, siteURL string) models.HealthCheckResult {
	category := c.Category()
	ctx, span := otel.Tracer("sitemonitor/collector").Start(ctx, "collector.collect")
	span.SetAttributes(attribute.String("category", string(category)), attribute.String("site_url", siteURL))
	defer span.End()

	start := time.Now()
	res, err := r.collectWithTimeout(ctx, c, siteURL)
	metrics.CollectorDuration.WithLabelValues(string(category)).Observe(time.Since(start).Seconds())

	if err == nil {
		err = validate(category, res)
	}
	if err != nil {
		metrics.CollectorFailures.WithLabelValues(string(category)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Log.Warn("Collector failed, using default result",
			zap.String("category", string(category)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return Default(category, siteURL, r.now(), err.Error())
	}
	return res
}

type outcome struct {
	res models.HealthCheckResult
	err error
}

// A collector that ignores its context is abandoned once the timeout fires.
func (r *Runner) collectWithTimeout(ctx context.Context, c Collector, siteURL string) (models.HealthCheckResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		var o outcome
		var pc panics.Catcher
		pc.Try(func() {
			o.res, o.err = c.Collect(ctx, siteURL)
		})
		if rec := pc.Recovered(); rec != nil {
			o.err = fmt.Errorf("collector panicked: %w", rec.AsError())
		}
		done <- o
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return models.HealthCheckResult{}, fmt.Errorf("collector timed out after %s: %w", r.timeout, ctx.Err())
	}
}

// Rejects results whose shape does not match their category.
func validate(category models.Category, res models.HealthCheckResult) error {
	if res.Category != category {
		return fmt.Errorf("collector returned category %q, want %q", res.Category, category)
	}
	var ok bool
	switch category {
	case models.CategorySEO:
		ok = res.SEO != nil
	case models.CategoryPerformance:
		ok = res.Performance != nil
	case models.CategoryNotFound:
		ok = res.NotFound != nil
	case models.CategorySitemap:
		ok = res.Sitemap != nil
	case models.CategoryIndexing:
		ok = res.Indexing != nil
	}
	if !ok {
		return fmt.Errorf("collector returned no %s payload", category)
	}
	return nil
}
