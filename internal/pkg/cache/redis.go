package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sitemonitor/internal/pkg/config"
	"sitemonitor/internal/pkg/logger"
)

// Cache backed by Redis string keys with native expiry.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// Connects to Redis and verifies the connection with a PING.
func NewRedisCache(ctx context.Context, cfg *config.Config) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword, // "" if no auth
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Log.Error("Failed to connect to Redis", zap.Error(err))
		_ = rdb.Close()
		return nil, err
	}

	logger.Log.Info("Connected to Redis successfully",
		zap.String("addr", cfg.RedisAddr()),
		zap.String("prefix", cfg.RedisPrefix),
	)

	return &RedisCache{client: rdb, prefix: cfg.RedisPrefix}, nil
}

func (r *RedisCache) key(k string) string {
	return r.prefix + k
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(key), value, ttl).Err()
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
