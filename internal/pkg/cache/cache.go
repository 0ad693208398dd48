package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"sitemonitor/internal/pkg/config"
	"sitemonitor/internal/pkg/logger"
	"sitemonitor/internal/pkg/metrics"
	"sitemonitor/internal/pkg/models"
)

// Time a DailyCheckResult stays readable after its run.
const DailyResultTTL = 24 * time.Hour

// Ephemeral key-value store with per-key expiry. Values are opaque bytes.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Reports found=false for missing and expired keys.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Delete(ctx context.Context, key string) error
}

// Creates the cache backend selected by CACHE_BACKEND.
func New(ctx context.Context, cfg *config.Config) (Cache, error) {
	switch strings.ToLower(cfg.CacheBackend) {
	case "", "memory":
		return NewMemoryCache(), nil
	case "redis":
		return NewRedisCache(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.CacheBackend)
	}
}

// Marshals value as JSON and stores it.
func SetJSON(ctx context.Context, c Cache, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		metrics.CacheOperations.WithLabelValues("set", "error").Inc()
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := c.Set(ctx, key, data, ttl); err != nil {
		metrics.CacheOperations.WithLabelValues("set", "error").Inc()
		return err
	}
	metrics.CacheOperations.WithLabelValues("set", "ok").Inc()
	return nil
}

// Loads and unmarshals a JSON value. found is false when the key is missing or expired.
func GetJSON(ctx context.Context, c Cache, key string, out interface{}) (bool, error) {
	data, found, err := c.Get(ctx, key)
	if err != nil {
		metrics.CacheOperations.WithLabelValues("get", "error").Inc()
		return false, err
	}
	if !found {
		metrics.CacheOperations.WithLabelValues("get", "miss").Inc()
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		metrics.CacheOperations.WithLabelValues("get", "error").Inc()
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	metrics.CacheOperations.WithLabelValues("get", "hit").Inc()
	return true, nil
}

func DailyResultKey(siteURL string) string {
	return "daily-check:" + siteURL
}

// Stores a run under its site URL. A newer run overwrites the older one.
func StoreDailyResult(ctx context.Context, c Cache, result *models.DailyCheckResult) error {
	if err := SetJSON(ctx, c, DailyResultKey(result.SiteURL), result, DailyResultTTL); err != nil {
		logger.Log.Error("Failed to store daily check result",
			zap.String("site_url", result.SiteURL), zap.Error(err))
		return err
	}
	return nil
}

// Returns the latest run for the site, if one is still cached.
func LoadDailyResult(ctx context.Context, c Cache, siteURL string) (*models.DailyCheckResult, bool, error) {
	var result models.DailyCheckResult
	found, err := GetJSON(ctx, c, DailyResultKey(siteURL), &result)
	if err != nil || !found {
		return nil, false, err
	}
	return &result, true, nil
}

func firedKey(fingerprint string) string {
	return "alert-fired:" + fingerprint
}

// Returns when an alert with this fingerprint last fired.
func LastFired(ctx context.Context, c Cache, fingerprint string) (time.Time, bool, error) {
	var at time.Time
	found, err := GetJSON(ctx, c, firedKey(fingerprint), &at)
	if err != nil || !found {
		return time.Time{}, false, err
	}
	return at, true, nil
}

// Records a fire time. The key expires after window, so a missing key means "not throttled".
func MarkFired(ctx context.Context, c Cache, fingerprint string, at time.Time, window time.Duration) error {
	return SetJSON(ctx, c, firedKey(fingerprint), at, window)
}
