package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"sitemonitor/internal/pkg/aggregator"
	"sitemonitor/internal/pkg/cache"
	"sitemonitor/internal/pkg/config"
	"sitemonitor/internal/pkg/logger"
	"sitemonitor/internal/pkg/metrics"
	"sitemonitor/internal/pkg/models"
	"sitemonitor/internal/pkg/notifier"
)

var ErrAlreadyRunning = errors.New("daily checks are already running")

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

type Runner interface {
	RunAll(ctx context.Context, siteURL string) map[models.Category]models.HealthCheckResult
}

type Evaluator interface {
	Evaluate(ctx context.Context, siteURL string, results map[models.Category]models.HealthCheckResult, summary models.Summary) []models.Alert
}

type Dispatcher interface {
	Dispatch(ctx context.Context, alerts []models.Alert, result *models.DailyCheckResult) notifier.Report
}

// Runs the daily pipeline, at most one run at a time.
type Scheduler struct {
	cfg        *config.Config
	runner     Runner
	aggregator *aggregator.Aggregator
	alerts     Evaluator
	dispatcher Dispatcher
	cache      cache.Cache
	now        func() time.Time

	state atomic.Int32

	mu          sync.Mutex
	lastOutcome State
	nextRun     time.Time
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(cfg *config.Config, runner Runner, agg *aggregator.Aggregator, alerts Evaluator,
	dispatcher Dispatcher, c cache.Cache, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:         cfg,
		runner:      runner,
		aggregator:  agg,
		alerts:      alerts,
		dispatcher:  dispatcher,
		cache:       c,
		now:         time.Now,
		lastOutcome: StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current run state, Idle or Running.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Outcome of the most recent run, Idle if none has finished.
func (s *Scheduler) LastOutcome() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOutcome
}

// Runs every collector, scores the results, raises alerts, caches the
// result and notifies. Returns ErrAlreadyRunning without doing any work
// when another run is in flight.
func (s *Scheduler) RunDailyChecks(ctx context.Context) (*models.DailyCheckResult, error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		metrics.RunsTotal.WithLabelValues("rejected").Inc()
		logger.Log.Warn("Daily checks already running, rejecting run")
		return nil, ErrAlreadyRunning
	}
	defer s.state.Store(int32(StateIdle))

	runID := uuid.NewString()
	ctx, span := otel.Tracer("sitemonitor/scheduler").Start(ctx, "scheduler.run")
	span.SetAttributes(attribute.String("run.id", runID), attribute.String("site.url", s.cfg.SiteURL))
	defer span.End()

	log := logger.Named("scheduler").With(zap.String("runId", runID))
	log.Info("Starting daily checks", zap.String("site", s.cfg.SiteURL))

	start := s.now()
	result, err := s.run(ctx, runID, start)
	elapsed := s.now().Sub(start)
	metrics.RunDuration.Observe(elapsed.Seconds())

	outcome := StateCompleted
	if err != nil {
		outcome = StateFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("Daily checks failed", zap.Error(err), zap.Duration("duration", elapsed))
	} else {
		log.Info("Daily checks completed",
			zap.Int("overallScore", result.Summary.OverallScore),
			zap.Int("criticalIssues", result.Summary.CriticalIssues),
			zap.Int("alerts", len(result.Alerts)),
			zap.Duration("duration", elapsed))
	}
	metrics.RunsTotal.WithLabelValues(outcome.String()).Inc()

	s.mu.Lock()
	s.lastOutcome = outcome
	s.mu.Unlock()

	return result, err
}

func (s *Scheduler) run(ctx context.Context, runID string, start time.Time) (result *models.DailyCheckResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("daily run panicked: %v", r)
		}
	}()

	checks := s.runner.RunAll(ctx, s.cfg.SiteURL)
	summary := s.aggregator.Aggregate(checks)
	alerts := s.alerts.Evaluate(ctx, s.cfg.SiteURL, checks, summary)
	summary = aggregator.WithAlerts(summary, alerts)

	result = &models.DailyCheckResult{
		RunID:     runID,
		SiteURL:   s.cfg.SiteURL,
		Timestamp: start,
		Duration:  s.now().Sub(start),
		Checks:    checks,
		Summary:   summary,
		Alerts:    alerts,
	}

	metrics.OverallScore.Set(float64(summary.OverallScore))
	for category, score := range summary.CategoryScores {
		metrics.CategoryScore.WithLabelValues(string(category)).Set(score)
	}

	if err := cache.StoreDailyResult(ctx, s.cache, result); err != nil {
		logger.Log.Error("Failed to cache daily result", zap.String("runId", runID), zap.Error(err))
	}

	report := s.dispatcher.Dispatch(ctx, alerts, result)
	if !report.Skipped {
		logger.Log.Info("Notifications dispatched",
			zap.String("runId", runID),
			zap.Strings("sent", report.Sent),
			zap.Int("failed", len(report.Failed)))
	}

	return result, nil
}

// Latest cached result for the configured site.
func (s *Scheduler) LastRun(ctx context.Context) (*models.DailyCheckResult, bool, error) {
	return cache.LoadDailyResult(ctx, s.cache, s.cfg.SiteURL)
}

// Next RUN_AT wall-clock time strictly after now, in now's location.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	hour, minute, err := s.cfg.RunAtClock()
	if err != nil {
		return now.Add(s.cfg.RunInterval)
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// When the running loop will fire next, zero before Start.
func (s *Scheduler) NextScheduled() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRun
}

func (s *Scheduler) setNext(t time.Time) {
	s.mu.Lock()
	s.nextRun = t
	s.mu.Unlock()
}

// Blocks until ctx is done. The first scheduled run happens at the next
// RUN_AT, later runs every RUN_INTERVAL.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cfg.RunOnStart {
		s.tick(ctx)
	}

	now := s.now()
	next := s.NextRun(now)
	s.setNext(next)
	logger.Log.Info("Scheduler started", zap.Time("nextRun", next), zap.Duration("interval", s.cfg.RunInterval))

	timer := time.NewTimer(next.Sub(now))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("Scheduler stopped")
			return
		case <-timer.C:
			s.setNext(s.now().Add(s.cfg.RunInterval))
			timer.Reset(s.cfg.RunInterval)
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	_, err := s.RunDailyChecks(ctx)
	switch {
	case errors.Is(err, ErrAlreadyRunning):
		logger.Log.Warn("Scheduled run skipped, previous run still in progress")
	case err != nil:
		logger.Log.Error("Scheduled run failed", zap.Error(err))
	}
}
