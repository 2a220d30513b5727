package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zenara-designs/reviews-gateway/internal/service"
)

type AnalyticsHandler struct {
	service *service.AnalyticsService
}

func NewAnalyticsHandler(service *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// Handles GET /admin/analytics
func (h *AnalyticsHandler) GetSummary(c *gin.Context) {
	from, to, err := parseTimeRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := h.service.GetSummary(c.Request.Context(), from, to)
	if err != nil {
		analyticsError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Handles GET /admin/logs
func (h *AnalyticsHandler) GetLogs(c *gin.Context) {
	from, to, err := parseTimeRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit := 100
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	// Parse status code filter (optional)
	var statusCode *int
	if statusStr := c.Query("status"); statusStr != "" {
		if s, err := strconv.Atoi(statusStr); err == nil {
			statusCode = &s
		}
	}

	logs, err := h.service.GetLogs(c.Request.Context(), from, to, statusCode, limit, offset)
	if err != nil {
		analyticsError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":   logs,
		"limit":  limit,
		"offset": offset,
	})
}

// Handles DELETE /admin/logs?retention_days=N
func (h *AnalyticsHandler) Cleanup(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("retention_days", "30"))
	if err != nil || days <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "retention_days must be a positive integer"})
		return
	}

	deleted, err := h.service.CleanupOldLogs(c.Request.Context(), days)
	if err != nil {
		analyticsError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted":        deleted,
		"retention_days": days,
	})
}

func analyticsError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrAnalyticsDisabled) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Request log storage is not configured"})
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query request logs"})
}

// Parses 'from' and 'to' query parameters
func parseTimeRange(c *gin.Context) (time.Time, time.Time, error) {
	// Default: last 24 hours
	to := time.Now()
	from := to.Add(-24 * time.Hour)

	if fromStr := c.Query("from"); fromStr != "" {
		parsed, err := parseTimeParam(fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}

	if toStr := c.Query("to"); toStr != "" {
		parsed, err := parseTimeParam(toStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed
	}

	if from.After(to) {
		return time.Time{}, time.Time{}, errors.New("'from' must not be after 'to'")
	}

	return from, to, nil
}

// Accepts RFC3339 or a Unix timestamp
func parseTimeParam(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, errors.New("invalid time " + strconv.Quote(s) + ": use RFC3339 or a unix timestamp")
	}
	return time.Unix(ts, 0), nil
}
