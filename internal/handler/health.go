package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zenara-designs/reviews-gateway/internal/circuitbreaker"
	"github.com/zenara-designs/reviews-gateway/internal/healthcheck"
)

type HealthHandler struct {
	checker *healthcheck.Checker
	breaker *circuitbreaker.CircuitBreaker
	version string
}

// NewHealthHandler reports on the dependencies registered with checker. An
// unregistered dependency (redis, database) is reported as healthy.
func NewHealthHandler(checker *healthcheck.Checker, breaker *circuitbreaker.CircuitBreaker, version string) *HealthHandler {
	return &HealthHandler{checker: checker, breaker: breaker, version: version}
}

// Handles GET /health
func (h *HealthHandler) Check(c *gin.Context) {
	checks := gin.H{
		"redis":    true,
		"database": true,
	}
	for name, st := range h.checker.GetAllStatus() {
		checks[name] = st.IsHealthy
	}
	if h.breaker != nil {
		checks["upstream_circuit"] = h.breaker.State().String()
	}

	overall := h.checker.OverallHealth()
	status := "healthy"
	statusCode := http.StatusOK
	if overall != healthcheck.Healthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "reviews-gateway",
		"version":   h.version,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}
