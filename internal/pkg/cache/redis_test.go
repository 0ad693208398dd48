package cache

import (
	"context"
	"testing"
	"time"

	"sitemonitor/internal/pkg/config"
)

// Exercises RedisCache against a local Redis. Skipped when none is reachable.
func TestRedisCache(t *testing.T) {
	cfg := config.Default()
	cfg.RedisPrefix = "sitemonitor_test:"

	ctx := context.Background()
	c, err := NewRedisCache(ctx, cfg)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer c.Close()

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("failed to clear key: %v", err)
	}

	if _, found, err := c.Get(ctx, "k"); err != nil || found {
		t.Fatalf("expected missing key, got found=%v err=%v", found, err)
	}

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	got, found, err := c.Get(ctx, "k")
	if err != nil || !found {
		t.Fatalf("expected key to be found, got found=%v err=%v", found, err)
	}
	if string(got) != "v" {
		t.Errorf("expected value 'v', got %q", got)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("delete failed: %v", err)
	}
}
