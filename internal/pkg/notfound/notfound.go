package notfound

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cloudflare/ahocorasick"
	"go.uber.org/zap"

	"sitemonitor/internal/pkg/config"
	"sitemonitor/internal/pkg/logger"
	"sitemonitor/internal/pkg/metrics"
	"sitemonitor/internal/pkg/models"
	"sitemonitor/internal/pkg/queue"
)

// Length of the top missing URL and top referrer lists.
const TopN = 10

var ErrMissingURL = errors.New("url is required")

// A single 404 hit reported by the site.
type Event struct {
	URL       string    `json:"url"`
	Referrer  string    `json:"referrer,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Bounded store of 404 events. Scanner traffic matching the ignore
// patterns are dropped on the way in.
type Store struct {
	events  *queue.Queue[Event]
	matcher *ahocorasick.Matcher
	now     func() time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Creates a store from NOT_FOUND_MAX_EVENTS and NOT_FOUND_IGNORE_PATTERNS.
func NewStore(cfg *config.Config, opts ...Option) (*Store, error) {
	q, err := queue.CreateQueue[Event](cfg.NotFoundMaxEvents)
	if err != nil {
		return nil, fmt.Errorf("not-found store: %w", err)
	}

	// Patterns are matched case-insensitively
	var patterns []string
	for _, p := range cfg.NotFoundIgnorePatterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			patterns = append(patterns, p)
		}
	}

	s := &Store{events: q, now: time.Now}
	if len(patterns) > 0 {
		s.matcher = ahocorasick.NewStringMatcher(patterns)
	}
	for _, o := range opts {
		o(s)
	}

	logger.Log.Info("Initializing not-found store",
		zap.Int("ignore_patterns", len(patterns)),
		zap.Int("max_events", cfg.NotFoundMaxEvents))

	return s, nil
}

// Reports whether url looks like automated scanning rather than a broken link.
func (s *Store) IsNoise(url string) bool {
	if s.matcher == nil {
		return false
	}
	return s.matcher.Contains([]byte(strings.ToLower(url)))
}

// Stores the event unless it is noise. recorded is false for ignored events.
func (s *Store) Record(e Event) (recorded bool, err error) {
	if strings.TrimSpace(e.URL) == "" {
		return false, ErrMissingURL
	}
	if s.IsNoise(e.URL) {
		metrics.IngestedEvents.WithLabelValues("not_found_ignored").Inc()
		return false, nil
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	s.events.Insert(e)
	metrics.IngestedEvents.WithLabelValues("not_found").Inc()
	return true, nil
}

// Summarises events at or after since.
func (s *Store) Analytics(since time.Time) models.NotFoundAnalytics {
	byURL := make(map[string]int)
	byReferrer := make(map[string]int)
	total := 0

	for _, e := range s.events.Snapshot() {
		if e.Timestamp.Before(since) {
			continue
		}
		total++
		byURL[e.URL]++
		if e.Referrer != "" {
			byReferrer[e.Referrer]++
		}
	}

	return models.NotFoundAnalytics{
		Total:        total,
		UniqueURLs:   len(byURL),
		TopMissing:   top(byURL, TopN),
		TopReferrers: top(byReferrer, TopN),
		Since:        since,
	}
}

// Highest counts first, ties broken by URL so output is stable.
func top(counts map[string]int, n int) []models.URLCount {
	out := make([]models.URLCount, 0, len(counts))
	for url, c := range counts {
		out = append(out, models.URLCount{URL: url, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].URL < out[j].URL
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
