package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zenara-designs/reviews-gateway/internal/metrics"
	"github.com/zenara-designs/reviews-gateway/internal/ratelimit"
)

const RateLimitedKey = "rate_limited"

// RateLimit applies limiter per client identity. When the limiter itself
// fails the request goes through; the quota is advisory.
func RateLimit(limiter ratelimit.Limiter, log *zap.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := identityFrom(c)

		decision, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.Warn("rate limit check failed, allowing request",
				zap.String("client", key),
				zap.String("request_id", c.GetString(RequestIDKey)),
				zap.Error(err),
			)
			record(m, "error")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			retryAfter := int(math.Ceil(time.Until(decision.ResetAt).Seconds()))
			if retryAfter < 0 {
				retryAfter = 0
			}

			record(m, "denied")
			c.Set(RateLimitedKey, true)
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "Too many requests. Please try again later.",
				"success": false,
			})
			return
		}

		record(m, "allowed")
		c.Next()
	}
}

func record(m *metrics.Metrics, result string) {
	if m != nil {
		m.RateLimitDecision(result)
	}
}
