package vitals

import (
	"errors"
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

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T, now *time.Time, max int) *Store {
	t.Helper()
	cfg := config.Default()
	cfg.VitalsMaxSamples = max
	s, err := NewStore(cfg, WithClock(func() time.Time { return *now }))
	require.NoError(t, err)
	return s
}

func TestRecordValidates(t *testing.T) {
	now := base
	s := newStore(t, &now, 10)

	err := s.Record(Sample{LCP: 1000})
	assert.True(t, errors.Is(err, ErrInvalidSample))

	err = s.Record(Sample{URL: "/", LCP: -1})
	assert.True(t, errors.Is(err, ErrInvalidSample))

	require.NoError(t, s.Record(Sample{URL: "/", LCP: 1000}))
	recent := s.Recent("", base.Add(-time.Hour))
	require.Len(t, recent, 1)
	assert.Equal(t, base, recent[0].Timestamp)
}

func TestRecordRejectsFutureTimestamps(t *testing.T) {
	now := base
	s := newStore(t, &now, 10)

	err := s.Record(Sample{URL: "/", LCP: 1000, Timestamp: base.Add(time.Hour)})
	assert.True(t, errors.Is(err, ErrInvalidSample))
	assert.Empty(t, s.Recent("", base.Add(-Window)))

	// Small skew is accepted and pulled back to now
	require.NoError(t, s.Record(Sample{URL: "/", LCP: 1000, Timestamp: base.Add(time.Minute)}))
	recent := s.Recent("", base.Add(-Window))
	require.Len(t, recent, 1)
	assert.Equal(t, base, recent[0].Timestamp)

	// The accepted sample still ages out of the window
	now = base.Add(Window + time.Minute)
	assert.Empty(t, s.Recent("", now.Add(-Window)))
	_, ok := s.Average("", now.Add(-Window))
	assert.False(t, ok)
}

func TestAverage(t *testing.T) {
	now := base
	s := newStore(t, &now, 10)

	require.NoError(t, s.Record(Sample{URL: "/", LCP: 2000, FID: 50, CLS: 0.05, TTFB: 600}))
	require.NoError(t, s.Record(Sample{URL: "/", LCP: 3000, FID: 150, CLS: 0.15, TTFB: 1000}))
	require.NoError(t, s.Record(Sample{URL: "/other", LCP: 9000}))

	avg, ok := s.Average("/", base.Add(-Window))
	require.True(t, ok)
	assert.Equal(t, 2, avg.Samples)
	assert.InDelta(t, 2500, avg.LCP, 1e-9)
	assert.InDelta(t, 100, avg.FID, 1e-9)
	assert.InDelta(t, 0.1, avg.CLS, 1e-9)
	assert.InDelta(t, 800, avg.TTFB, 1e-9)

	all, ok := s.Average("", base.Add(-Window))
	require.True(t, ok)
	assert.Equal(t, 3, all.Samples)

	_, ok = s.Average("/missing", base.Add(-Window))
	assert.False(t, ok)
}

func TestRecentDropsStaleSamples(t *testing.T) {
	now := base
	s := newStore(t, &now, 10)

	require.NoError(t, s.Record(Sample{URL: "/", LCP: 1}))
	now = base.Add(Window + time.Minute)
	require.NoError(t, s.Record(Sample{URL: "/", LCP: 2}))

	recent := s.Recent("", time.Time{})
	require.Len(t, recent, 1)
	assert.Equal(t, 2.0, recent[0].LCP)
}

func TestStoreIsBounded(t *testing.T) {
	now := base
	s := newStore(t, &now, 2)

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.Record(Sample{URL: "/", LCP: float64(i)}))
	}
	recent := s.Recent("", time.Time{})
	require.Len(t, recent, 2)
	assert.Equal(t, 2.0, recent[0].LCP)
	assert.Equal(t, 3.0, recent[1].LCP)
}

func TestRate(t *testing.T) {
	now := base
	s := newStore(t, &now, 1)

	assert.Equal(t, models.RatingGood, s.Rate(LCP, 2500))
	assert.Equal(t, models.RatingNeedsImprovement, s.Rate(LCP, 2501))
	assert.Equal(t, models.RatingNeedsImprovement, s.Rate(LCP, 4000))
	assert.Equal(t, models.RatingPoor, s.Rate(LCP, 4001))
	assert.Equal(t, models.RatingGood, s.Rate(CLS, 0.1))
	assert.Equal(t, models.RatingPoor, s.Rate(CLS, 0.3))
}
