package vitals

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sitemonitor/internal/pkg/config"
	"sitemonitor/internal/pkg/logger"
	"sitemonitor/internal/pkg/metrics"
	"sitemonitor/internal/pkg/models"
	"sitemonitor/internal/pkg/queue"
)

// Samples older than this are never reported.
const Window = 24 * time.Hour

// How far ahead of the store's clock a reported timestamp may be.
const MaxClockSkew = 5 * time.Minute

var ErrInvalidSample = errors.New("invalid web vitals sample")

type Metric string

const (
	LCP  Metric = "lcp"
	FID  Metric = "fid"
	CLS  Metric = "cls"
	TTFB Metric = "ttfb"
)

// One field measurement reported by a browser. Times are milliseconds.
type Sample struct {
	URL       string    `json:"url"`
	LCP       float64   `json:"lcp"`
	FID       float64   `json:"fid"`
	CLS       float64   `json:"cls"`
	TTFB      float64   `json:"ttfb"`
	FCP       float64   `json:"fcp,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Bounded in-memory store of recent samples. Safe for concurrent use.
type Store struct {
	samples *queue.Queue[Sample]
	bounds  map[Metric]config.Boundary
	now     func() time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Creates a store holding at most VITALS_MAX_SAMPLES samples.
func NewStore(cfg *config.Config, opts ...Option) (*Store, error) {
	q, err := queue.CreateQueue[Sample](cfg.VitalsMaxSamples)
	if err != nil {
		return nil, fmt.Errorf("vitals store: %w", err)
	}
	s := &Store{
		samples: q,
		bounds: map[Metric]config.Boundary{
			LCP:  cfg.LCP(),
			FID:  cfg.FID(),
			CLS:  cfg.CLS(),
			TTFB: cfg.TTFB(),
		},
		now: time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Adds a sample, stamping it with the current time when it carries none.
// Timestamps slightly ahead of the clock are pulled back to now.
func (s *Store) Record(sample Sample) error {
	if sample.URL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidSample)
	}
	if sample.LCP < 0 || sample.FID < 0 || sample.CLS < 0 || sample.TTFB < 0 || sample.FCP < 0 {
		return fmt.Errorf("%w: metrics must not be negative", ErrInvalidSample)
	}
	now := s.now()
	switch {
	case sample.Timestamp.IsZero():
		sample.Timestamp = now
	case sample.Timestamp.After(now.Add(MaxClockSkew)):
		return fmt.Errorf("%w: timestamp %s is in the future", ErrInvalidSample, sample.Timestamp.Format(time.RFC3339))
	case sample.Timestamp.After(now):
		sample.Timestamp = now
	}
	if s.samples.Insert(sample) {
		logger.Log.Debug("Vitals store full, dropped oldest sample")
	}
	metrics.IngestedEvents.WithLabelValues("vitals").Inc()
	return nil
}

// Returns samples taken at or after since, oldest first. An empty url matches every page.
func (s *Store) Recent(url string, since time.Time) []Sample {
	cutoff := s.now().Add(-Window)
	if dropped := s.samples.Retain(func(x Sample) bool { return !x.Timestamp.Before(cutoff) }); dropped > 0 {
		logger.Log.Debug("Dropped stale vitals samples", zap.Int("count", dropped))
	}

	var out []Sample
	for _, x := range s.samples.Snapshot() {
		if x.Timestamp.Before(since) {
			continue
		}
		if url != "" && x.URL != url {
			continue
		}
		out = append(out, x)
	}
	return out
}

// Averages each metric over Recent(url, since). ok is false when there are no samples.
func (s *Store) Average(url string, since time.Time) (models.WebVitals, bool) {
	recent := s.Recent(url, since)
	if len(recent) == 0 {
		return models.WebVitals{URL: url}, false
	}

	var avg models.WebVitals
	for _, x := range recent {
		avg.LCP += x.LCP
		avg.FID += x.FID
		avg.CLS += x.CLS
		avg.TTFB += x.TTFB
		avg.FCP += x.FCP
	}
	n := float64(len(recent))
	avg.URL = url
	avg.LCP /= n
	avg.FID /= n
	avg.CLS /= n
	avg.TTFB /= n
	avg.FCP /= n
	avg.Samples = len(recent)
	return avg, true
}

// Rates a value against the configured boundaries for metric.
func (s *Store) Rate(metric Metric, value float64) models.Rating {
	return Rate(s.bounds[metric], value)
}

// Good up to and including Good, needs improvement up to and including Poor, poor above.
func Rate(b config.Boundary, value float64) models.Rating {
	switch {
	case value <= b.Good:
		return models.RatingGood
	case value <= b.Poor:
		return models.RatingNeedsImprovement
	default:
		return models.RatingPoor
	}
}
