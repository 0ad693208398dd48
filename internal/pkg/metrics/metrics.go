package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counts scheduler runs by outcome (completed, failed, rejected).
var RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sitemonitor_runs_total",
	Help: "Total number of daily check runs by outcome",
}, []string{"outcome"})

// Measures wall time of a full run.
var RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "sitemonitor_run_duration_seconds",
	Help:    "Time taken by a complete daily check run",
	Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // From 100ms to ~100s
})

// Latest weighted score.
var OverallScore = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "sitemonitor_overall_score",
	Help: "Weighted overall site health score of the latest run (0-100)",
})

var (
	CategoryScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sitemonitor_category_score",
		Help: "Per-category score of the latest run (0-100)",
	}, []string{"category"})

	CollectorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitemonitor_collector_failures_total",
		Help: "Collector runs that errored, timed out or panicked and fell back to a default result",
	}, []string{"category"})

	CollectorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sitemonitor_collector_duration_seconds",
		Help:    "Time taken by each collector",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"category"})
)

// Alert metrics
var (
	AlertsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitemonitor_alerts_created_total",
		Help: "Alerts created by category and severity",
	}, []string{"category", "severity"})

	AlertsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitemonitor_alerts_suppressed_total",
		Help: "Alerts suppressed by throttling or the hourly cap",
	}, []string{"reason"})
)

// Notification metrics
var (
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitemonitor_notifications_total",
		Help: "Notification sends by channel and outcome",
	}, []string{"channel", "outcome"})

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sitemonitor_circuit_breaker_state",
			Help: "Current state of channel circuit breakers (0=closed, 1=half-open, 2=open)",
		},
		[]string{"channel"},
	)
)

// Counts cache reads and writes.
var CacheOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sitemonitor_cache_operations_total",
	Help: "Result cache operations by operation and result",
}, []string{"op", "result"})

// Counts events accepted by the ingest endpoints.
var IngestedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sitemonitor_ingested_events_total",
	Help: "Web vitals samples and not-found events accepted, by kind",
}, []string{"kind"})
