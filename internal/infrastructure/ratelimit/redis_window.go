package ratelimit

import (
	"context"
	"time"

	"github.com/arvoria/authd/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisWindow is a fixed-window counter backed by Redis, giving shared,
// atomically-incremented counters across server instances.
type RedisWindow struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisWindow creates a Redis-backed fixed-window limiter.
func NewRedisWindow(client *redis.Client, logger *zap.Logger) *RedisWindow {
	return &RedisWindow{client: client, logger: logger}
}

// IsLimited increments the counter for key atomically; the key expires
// with the window, which resets the counter.
func (r *RedisWindow) IsLimited(ctx context.Context, key string, max int, window time.Duration) (bool, error) {
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, "ratelimit:"+key)
	pipe.ExpireNX(ctx, "ratelimit:"+key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Rate limit counter update failed",
			zap.String("key", key),
			zap.Error(err))
		return false, err
	}

	return incr.Val() > int64(max), nil
}

var _ domain.RateLimiter = (*RedisWindow)(nil)
