package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zenara-designs/reviews-gateway/internal/circuitbreaker"
	"github.com/zenara-designs/reviews-gateway/internal/ratelimit"
)

// Handles system-related admin endpoints
type SystemHandler struct {
	limiter   ratelimit.Limiter
	backend   string
	breaker   *circuitbreaker.CircuitBreaker
	log       *zap.Logger
	version   string
	startTime time.Time
}

func NewSystemHandler(limiter ratelimit.Limiter, backend string, breaker *circuitbreaker.CircuitBreaker, version string, log *zap.Logger) *SystemHandler {
	return &SystemHandler{
		limiter:   limiter,
		backend:   backend,
		breaker:   breaker,
		log:       log,
		version:   version,
		startTime: time.Now(),
	}
}

// Handles GET /admin/status
func (h *SystemHandler) Status(c *gin.Context) {
	limiter := gin.H{
		"backend":        h.backend,
		"limit":          h.limiter.Limit(),
		"window_seconds": h.limiter.Window().Seconds(),
	}
	if counted, ok := h.limiter.(interface{ Len() int }); ok {
		limiter["tracked_identities"] = counted.Len()
	}

	c.JSON(http.StatusOK, gin.H{
		"gateway":      "running",
		"version":      h.version,
		"uptime":       time.Since(h.startTime).Seconds(),
		"timestamp":    time.Now().Unix(),
		"rate_limiter": limiter,
		"circuit":      h.breaker.Metrics(),
	})
}

// Handles DELETE /admin/ratelimit/:key
func (h *SystemHandler) ClearRateLimit(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identity is required"})
		return
	}

	if err := h.limiter.Clear(c.Request.Context(), key); err != nil {
		h.log.Error("clearing rate limit failed", zap.String("client", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear rate limit"})
		return
	}

	h.log.Info("rate limit cleared", zap.String("client", key), zap.String("admin", c.GetString("admin")))
	c.JSON(http.StatusOK, gin.H{
		"message": "Rate limit cleared",
		"key":     key,
	})
}

// Manually resets the upstream circuit breaker
func (h *SystemHandler) ResetCircuitBreaker(c *gin.Context) {
	h.breaker.Reset()

	h.log.Info("circuit breaker reset", zap.String("admin", c.GetString("admin")))
	c.JSON(http.StatusOK, gin.H{
		"message": "Circuit breaker reset successfully",
		"state":   h.breaker.State().String(),
	})
}
