package ratelimit

import (
	"time"

	"github.com/zenara-designs/reviews-gateway/internal/storage"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// NewLimiter picks a backend. Redis is used only when requested and a client
// is available; everything else gets the in-memory limiter.
func NewLimiter(backend string, redis *storage.RedisClient, limit int, window time.Duration, opts ...Option) Limiter {
	switch backend {
	case BackendRedis:
		if redis != nil {
			return NewRedisFixedWindow(redis, limit, window)
		}
		return NewFixedWindow(limit, window, opts...)
	default:
		return NewFixedWindow(limit, window, opts...)
	}
}
