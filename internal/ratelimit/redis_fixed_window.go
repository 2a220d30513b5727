package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/zenara-designs/reviews-gateway/internal/storage"
)

// RedisFixedWindowLimiter shares counters between replicas through Redis.
// Like FixedWindowLimiter, a key's window opens on its first request; the
// key's TTL is the window.
type RedisFixedWindowLimiter struct {
	redis  *storage.RedisClient
	limit  int
	window time.Duration
	prefix string
}

func NewRedisFixedWindow(redis *storage.RedisClient, limit int, window time.Duration) *RedisFixedWindowLimiter {
	return &RedisFixedWindowLimiter{
		redis:  redis,
		limit:  limit,
		window: window,
		prefix: "ratelimit:reviews",
	}
}

func (r *RedisFixedWindowLimiter) key(k string) string {
	return fmt.Sprintf("%s:%s", r.prefix, k)
}

func (r *RedisFixedWindowLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := r.key(key)

	pipe := r.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit pipeline: %w", err)
	}

	count := incr.Val()
	remainingTTL := ttl.Val()

	// First hit, or a key that lost its TTL: start the window now.
	if count == 1 || remainingTTL < 0 {
		if err := r.redis.PExpire(ctx, redisKey, r.window); err != nil {
			return Decision{}, fmt.Errorf("rate limit expire: %w", err)
		}
		remainingTTL = r.window
	}

	remaining := r.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   count <= int64(r.limit),
		Limit:     r.limit,
		Remaining: remaining,
		ResetAt:   time.Now().Add(remainingTTL),
	}, nil
}

func (r *RedisFixedWindowLimiter) Clear(ctx context.Context, key string) error {
	return r.redis.Del(ctx, r.key(key))
}

func (r *RedisFixedWindowLimiter) Limit() int {
	return r.limit
}

func (r *RedisFixedWindowLimiter) Window() time.Duration {
	return r.window
}
