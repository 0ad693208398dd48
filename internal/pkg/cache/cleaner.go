package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"sitemonitor/internal/pkg/logger"
)

// Minimal contract the cleaner needs from a store.
type Expirer interface {
	RemoveExpired() int
}

// Periodically removes expired keys from an in-memory cache.
type Cleaner struct {
	store    Expirer
	interval time.Duration
}

func NewCleaner(store Expirer, interval time.Duration) *Cleaner {
	return &Cleaner{store: store, interval: interval}
}

// Runs the cleanup loop until ctx is cancelled. Blocks; run it in its own goroutine.
func (c *Cleaner) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.RunOnce()
		case <-ctx.Done():
			logger.Log.Debug("Cache cleaner stopped")
			return
		}
	}
}

func (c *Cleaner) RunOnce() int {
	removed := c.store.RemoveExpired()
	if removed > 0 {
		logger.Log.Debug("Cache cleaner removed expired keys", zap.Int("removed", removed))
	}
	return removed
}
