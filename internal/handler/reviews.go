package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zenara-designs/reviews-gateway/internal/circuitbreaker"
	"github.com/zenara-designs/reviews-gateway/internal/places"
	"github.com/zenara-designs/reviews-gateway/internal/service"
)

const (
	msgConfiguration = "Server configuration error"
	msgUpstream      = "Failed to fetch reviews from Google Places API"
	msgInternal      = "Internal server error"
)

// ReviewsFetcher is satisfied by *service.ReviewsService.
type ReviewsFetcher interface {
	Fetch(ctx context.Context) (places.Payload, error)
}

type ReviewsHandler struct {
	svc ReviewsFetcher
	log *zap.Logger
}

func NewReviewsHandler(svc ReviewsFetcher, log *zap.Logger) *ReviewsHandler {
	return &ReviewsHandler{svc: svc, log: log}
}

// Handles GET /api/reviews
func (h *ReviewsHandler) Get(c *gin.Context) {
	payload, err := h.svc.Fetch(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    payload,
	})
}

func (h *ReviewsHandler) fail(c *gin.Context, err error) {
	requestID := zap.String("request_id", c.GetString("request_id"))
	_ = c.Error(err)

	var upstream *places.UpstreamError
	switch {
	case errors.Is(err, service.ErrConfiguration):
		h.log.Error("places credentials are missing", requestID)
		errorJSON(c, http.StatusInternalServerError, msgConfiguration)

	case errors.As(err, &upstream):
		fields := []zap.Field{
			requestID,
			zap.Int("upstream_status", upstream.StatusCode),
			zap.String("upstream_body", upstream.Body),
		}
		if upstream.StatusCode >= http.StatusInternalServerError {
			h.log.Error("places api request failed", fields...)
		} else {
			h.log.Warn("places api request failed", fields...)
		}
		errorJSON(c, passthroughStatus(upstream.StatusCode), msgUpstream)

	case places.IsCallerError(err):
		h.log.Info("client went away before places api answered", requestID, zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, msgInternal)

	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		h.log.Warn("places api circuit is open", requestID)
		errorJSON(c, http.StatusServiceUnavailable, msgUpstream)

	default:
		h.log.Error("fetching reviews failed", requestID, zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, msgInternal)
	}
}

// passthroughStatus keeps the upstream status unless it cannot carry an
// error body.
func passthroughStatus(code int) int {
	if code < http.StatusBadRequest || code > 599 {
		return http.StatusBadGateway
	}
	return code
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":   msg,
		"success": false,
	})
}
