package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Concurrency-safe in-memory Cache. Expired keys are dropped lazily on read
// and in bulk by RemoveExpired.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]entry
	now  func() time.Time
}

type Option func(*MemoryCache)

// Overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *MemoryCache) {
		m.now = now
	}
}

func NewMemoryCache(opts ...Option) *MemoryCache {
	m := &MemoryCache{
		data: make(map[string]entry),
		now:  time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.data[key] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if e.expired(m.now()) {
		m.mu.Lock()
		// Re-check: a concurrent Set may have refreshed the key.
		if cur, ok := m.data[key]; ok && cur.expired(m.now()) {
			delete(m.data, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// Removes all expired keys and returns how many were removed.
func (m *MemoryCache) RemoveExpired() int {
	now := m.now()
	removed := 0

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.data {
		if e.expired(now) {
			delete(m.data, k)
			removed++
		}
	}
	return removed
}

// Number of keys held, including expired keys not yet removed.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
