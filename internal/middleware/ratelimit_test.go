package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zenara-designs/reviews-gateway/internal/metrics"
	"github.com/zenara-designs/reviews-gateway/internal/ratelimit"
)

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("redis: connection refused")
}
func (brokenLimiter) Clear(context.Context, string) error { return nil }
func (brokenLimiter) Limit() int                          { return 10 }
func (brokenLimiter) Window() time.Duration               { return 15 * time.Minute }

func newRateLimitedRouter(l ratelimit.Limiter, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(Identity())
	r.GET("/api/reviews", RateLimit(l, zap.NewNop(), m), okHandler)
	return r
}

func reviewsRequest(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/reviews", nil)
	req.Header.Set("X-Forwarded-For", ip)
	return req
}

func TestRateLimit_TenThenDeny(t *testing.T) {
	m := metrics.New()
	r := newRateLimitedRouter(ratelimit.NewFixedWindow(10, 15*time.Minute), m)

	for i := 1; i <= 10; i++ {
		rec := serve(t, r, reviewsRequest("203.0.113.1"))
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
		assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(10-i), rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec := serve(t, r, reviewsRequest("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"Too many requests. Please try again later.","success":false}`, rec.Body.String())
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.InDelta(t, 900, retry, 2)

	// other identities are unaffected
	rec = serve(t, r, reviewsRequest("203.0.113.2"))
	assert.Equal(t, http.StatusOK, rec.Code)

	body := scrape(t, m)
	assert.Contains(t, body, `reviews_gateway_ratelimit_decisions_total{result="allowed"} 11`)
	assert.Contains(t, body, `reviews_gateway_ratelimit_decisions_total{result="denied"} 1`)
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestRateLimit_NewWindowAfterReset(t *testing.T) {
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	r := newRateLimitedRouter(ratelimit.NewFixedWindow(10, 15*time.Minute, ratelimit.WithClock(clock)), nil)

	for i := 0; i < 10; i++ {
		serve(t, r, reviewsRequest("198.51.100.7"))
	}
	require.Equal(t, http.StatusTooManyRequests, serve(t, r, reviewsRequest("198.51.100.7")).Code)

	now = now.Add(15*time.Minute + time.Second)

	rec := serve(t, r, reviewsRequest("198.51.100.7"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "9", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimit_UnknownClientsShareBucket(t *testing.T) {
	r := newRateLimitedRouter(ratelimit.NewFixedWindow(2, time.Minute), nil)

	anonymous := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/reviews", nil)
		req.RemoteAddr = ""
		return req
	}

	assert.Equal(t, http.StatusOK, serve(t, r, anonymous()).Code)
	assert.Equal(t, http.StatusOK, serve(t, r, anonymous()).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(t, r, anonymous()).Code)
}

func TestRateLimit_LimiterErrorAllows(t *testing.T) {
	m := metrics.New()
	r := newRateLimitedRouter(brokenLimiter{}, m)

	rec := serve(t, r, reviewsRequest("203.0.113.1"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	assert.Contains(t, scrape(t, m), `reviews_gateway_ratelimit_decisions_total{result="error"} 1`)
}
