package alert

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"sitemonitor/internal/pkg/cache"
	"sitemonitor/internal/pkg/config"
	"sitemonitor/internal/pkg/logger"
	"sitemonitor/internal/pkg/metrics"
	"sitemonitor/internal/pkg/models"
)

const (
	// Bounds on the retained alert history.
	HistoryLimit = 500
	HistoryTTL   = 24 * time.Hour

	// Title of the meta-alert raised when the hourly cap starts suppressing alerts.
	SuppressedTitle = "Alerts Suppressed"

	historyKey = "alert-history"
	capWindow  = time.Hour
)

var ErrNotFound = errors.New("alert not found")

// An alert plus the operator's bookkeeping for it.
type Record struct {
	models.Alert
	Status models.AlertStatus `json:"status"`
}

// Selects alerts from the history. Zero values match everything.
type Filter struct {
	Category   models.Category
	Severity   models.Severity
	Since      time.Time
	Unresolved bool
	Limit      int
}

// Creates, throttles and stores alerts. Safe for concurrent use.
type Manager struct {
	cache      cache.Cache
	window     time.Duration
	maxPerHour int
	tiers      thresholds
	now        func() time.Time

	mu        sync.Mutex
	history   []models.Alert // oldest first
	status    map[string]models.AlertStatus
	delivered []time.Time // delivery times within the last capWindow
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Creates a manager and restores any alert history still held in c.
func NewManager(ctx context.Context, cfg *config.Config, c cache.Cache, opts ...Option) *Manager {
	m := &Manager{
		cache:      c,
		window:     cfg.AlertThrottleWindow,
		maxPerHour: cfg.MaxAlertsPerHour,
		tiers:      newThresholds(cfg),
		now:        time.Now,
		status:     make(map[string]models.AlertStatus),
	}
	for _, o := range opts {
		o(m)
	}

	var restored []models.Alert
	found, err := cache.GetJSON(ctx, c, historyKey, &restored)
	if err != nil {
		logger.Log.Warn("Failed to restore alert history", zap.Error(err))
	} else if found {
		m.history = restored
		m.pruneLocked()
		logger.Log.Info("Restored alert history", zap.Int("alerts", len(m.history)))
	}
	return m
}

// Creates an alert unless the same fingerprint fired within the throttle
// window or the hourly cap is reached; both cases return nil, nil. The
// first cap suppression also raises a meta-alert into the history.
func (m *Manager) CreateAlert(ctx context.Context, category models.Category, severity models.Severity,
	title, message, url string, data map[string]interface{}) (*models.Alert, error) {
	a, _, err := m.create(ctx, category, severity, title, message, url, data)
	return a, err
}

func (m *Manager) create(ctx context.Context, category models.Category, severity models.Severity,
	title, message, url string, data map[string]interface{}) (created, meta *models.Alert, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	fp := Fingerprint(category, title)

	if m.throttledLocked(ctx, fp, now) {
		metrics.AlertsSuppressed.WithLabelValues("throttled").Inc()
		logger.Log.Debug("Alert throttled", zap.String("category", string(category)), zap.String("title", title))
		return nil, nil, nil
	}

	m.trimDeliveredLocked(now)
	if len(m.delivered) >= m.maxPerHour {
		metrics.AlertsSuppressed.WithLabelValues("hourly_cap").Inc()
		logger.Log.Debug("Alert suppressed by hourly cap", zap.String("category", string(category)), zap.String("title", title))
		meta, err = m.suppressedMetaLocked(ctx, now, url)
		return nil, meta, err
	}

	a := m.deliverLocked(ctx, fp, category, severity, title, message, url, data, now)
	return a, nil, nil
}

// The meta-alert bypasses the cap but is throttled like any other alert.
func (m *Manager) suppressedMetaLocked(ctx context.Context, now time.Time, url string) (*models.Alert, error) {
	fp := Fingerprint(models.CategorySystem, SuppressedTitle)
	if m.throttledLocked(ctx, fp, now) {
		return nil, nil
	}
	a := m.deliverLocked(ctx, fp, models.CategorySystem, models.SeverityHigh, SuppressedTitle,
		"More than the hourly alert limit fired; further alerts are suppressed for this hour", url,
		map[string]interface{}{"max_alerts_per_hour": m.maxPerHour}, now)
	return a, nil
}

func (m *Manager) deliverLocked(ctx context.Context, fp string, category models.Category, severity models.Severity,
	title, message, url string, data map[string]interface{}, now time.Time) *models.Alert {
	a := models.Alert{
		ID:          alertID(category, fp),
		Fingerprint: fp,
		Category:    category,
		Severity:    severity,
		Title:       title,
		Message:     message,
		URL:         url,
		Timestamp:   now,
		Data:        copyData(data),
	}

	if err := cache.MarkFired(ctx, m.cache, fp, now, m.window); err != nil {
		logger.Log.Warn("Failed to record alert fire time", zap.String("fingerprint", fp), zap.Error(err))
	}
	if category != models.CategorySystem {
		m.delivered = append(m.delivered, now)
	}

	// A newer alert supersedes the older one with the same ID.
	for i, old := range m.history {
		if old.ID == a.ID {
			m.history = append(m.history[:i], m.history[i+1:]...)
			break
		}
	}
	delete(m.status, a.ID)
	m.history = append(m.history, a)
	m.pruneLocked()
	if err := cache.SetJSON(ctx, m.cache, historyKey, m.history, HistoryTTL); err != nil {
		logger.Log.Warn("Failed to persist alert history", zap.Error(err))
	}

	metrics.AlertsCreated.WithLabelValues(string(category), string(severity)).Inc()
	logger.Log.Info("Alert created",
		zap.String("id", a.ID),
		zap.String("category", string(category)),
		zap.String("severity", string(severity)),
		zap.String("title", title))

	out := a
	return &out
}

// Cache read errors fail open: a missed throttle is better than a lost alert.
func (m *Manager) throttledLocked(ctx context.Context, fp string, now time.Time) bool {
	at, found, err := cache.LastFired(ctx, m.cache, fp)
	if err != nil {
		logger.Log.Warn("Failed to read alert fire time", zap.String("fingerprint", fp), zap.Error(err))
		return false
	}
	return found && now.Sub(at) < m.window
}

func (m *Manager) trimDeliveredLocked(now time.Time) {
	cutoff := now.Add(-capWindow)
	i := 0
	for i < len(m.delivered) && !m.delivered[i].After(cutoff) {
		i++
	}
	m.delivered = m.delivered[i:]
}

func (m *Manager) pruneLocked() {
	cutoff := m.now().Add(-HistoryTTL)
	kept := m.history[:0]
	for _, a := range m.history {
		if a.Timestamp.After(cutoff) {
			kept = append(kept, a)
		}
	}
	m.history = kept
	if len(m.history) > HistoryLimit {
		m.history = m.history[len(m.history)-HistoryLimit:]
	}
}

// Returns matching alerts, newest first.
func (m *Manager) Alerts(f Filter) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()

	out := []Record{}
	for i := len(m.history) - 1; i >= 0; i-- {
		a := m.history[i]
		st := m.status[a.ID]
		switch {
		case f.Category != "" && a.Category != f.Category:
			continue
		case f.Severity != "" && a.Severity != f.Severity:
			continue
		case !f.Since.IsZero() && a.Timestamp.Before(f.Since):
			continue
		case f.Unresolved && st.Resolved:
			continue
		}
		a.Data = copyData(a.Data)
		out = append(out, Record{Alert: a, Status: st})
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (m *Manager) Acknowledge(id string) error {
	return m.setStatus(id, func(s *models.AlertStatus) { s.Acknowledged = true })
}

// Resolving also acknowledges.
func (m *Manager) Resolve(id string) error {
	return m.setStatus(id, func(s *models.AlertStatus) {
		s.Acknowledged = true
		s.Resolved = true
	})
}

func (m *Manager) setStatus(id string, update func(*models.AlertStatus)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.history {
		if a.ID == id {
			st := m.status[id]
			update(&st)
			st.UpdatedAt = m.now()
			m.status[id] = st
			return nil
		}
	}
	return ErrNotFound
}

func copyData(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
