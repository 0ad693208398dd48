package administrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"sitemonitor/internal/pkg/aggregator"
	"sitemonitor/internal/pkg/alert"
	"sitemonitor/internal/pkg/cache"
	"sitemonitor/internal/pkg/collector"
	"sitemonitor/internal/pkg/config"
	"sitemonitor/internal/pkg/indexing"
	"sitemonitor/internal/pkg/logger"
	"sitemonitor/internal/pkg/models"
	"sitemonitor/internal/pkg/notfound"
	"sitemonitor/internal/pkg/notifier"
	"sitemonitor/internal/pkg/scheduler"
	"sitemonitor/internal/pkg/vitals"
)

const shutdownTimeout = 15 * time.Second

// Owns every monitoring component and the HTTP service in front of them.
type Administrator struct {
	config    *config.Config
	cache     cache.Cache
	vitals    *vitals.Store
	notFound  *notfound.Store
	alerts    *alert.Manager
	scheduler *scheduler.Scheduler
	startTime time.Time
}

// Builds the full pipeline from config. Fails only on unusable
// configuration or an unreachable Redis.
func New(ctx context.Context, cfg *config.Config) (*Administrator, error) {
	store, err := cache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	vitalsStore, err := vitals.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("create vitals store: %w", err)
	}
	notFoundStore, err := notfound.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("create 404 store: %w", err)
	}

	fetcher := collector.NewFetcher(cfg)
	source, err := indexing.New(cfg, func(ctx context.Context, siteURL string) (int, error) {
		return collector.CountSitemapURLs(ctx, fetcher, siteURL)
	})
	if err != nil {
		return nil, fmt.Errorf("create indexing source: %w", err)
	}

	runner := collector.NewRunner(cfg,
		collector.NewSEOCollector(cfg, fetcher, vitalsStore, collector.NewLanguageDetector()),
		collector.NewPerformanceCollector(vitalsStore),
		collector.NewNotFoundCollector(cfg, notFoundStore),
		collector.NewSitemapCollector(fetcher),
		collector.NewIndexingCollector(cfg, source),
	)

	channels := notifier.ChannelsFromConfig(cfg)
	if len(channels) == 0 {
		logger.Log.Warn("No notification channels enabled")
	}

	manager := alert.NewManager(ctx, cfg, store)
	sched := scheduler.New(cfg, runner, aggregator.New(cfg), manager,
		notifier.NewDispatcher(cfg, channels...), store)

	return &Administrator{
		config:    cfg,
		cache:     store,
		vitals:    vitalsStore,
		notFound:  notFoundStore,
		alerts:    manager,
		scheduler: sched,
		startTime: time.Now(),
	}, nil
}

// Runs a single check, bypassing the schedule.
func (admin *Administrator) RunOnce(ctx context.Context) (*models.DailyCheckResult, error) {
	return admin.scheduler.RunDailyChecks(ctx)
}

// Starts the cache cleaner, the scheduler and the HTTP service on
// SERVER_PORT, and blocks until ctx is cancelled or the server fails.
func (admin *Administrator) Serve(ctx context.Context) error {
	if expirer, ok := admin.cache.(cache.Expirer); ok {
		go cache.NewCleaner(expirer, admin.config.CacheCleanupInterval).Start(ctx)
	}
	go admin.scheduler.Start(ctx)

	server := &http.Server{
		Addr:              ":" + admin.config.ServerPort,
		Handler:           admin.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Log.Info("HTTP service listening", zap.String("address", server.Addr))
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http service: %w", err)
	case <-ctx.Done():
	}

	logger.Log.Info("Beginning shutdown sequence")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http service: %w", err)
	}
	return nil
}

// Releases external connections.
func (admin *Administrator) Stop() {
	if closer, ok := admin.cache.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Log.Warn("Failed to close cache", zap.Error(err))
		}
	}
	logger.Log.Info("Administrator stopped gracefully")
}

// Routes for the running service.
func (admin *Administrator) Handler() http.Handler {
	return NewHandler(Services{
		Monitor:   admin.scheduler,
		Alerts:    admin.alerts,
		Vitals:    admin.vitals,
		NotFound:  admin.notFound,
		StartTime: admin.startTime,
	})
}
