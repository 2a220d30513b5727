package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zenara-designs/reviews-gateway/internal/circuitbreaker"
)

// FieldMask restricts the place resource to what Normalize reads.
const FieldMask = "reviews,rating,userRatingCount,displayName"

const (
	DefaultBaseURL = "https://places.googleapis.com"
	DefaultTimeout = 10 * time.Second

	// maxErrorBody caps how much of an upstream error body is kept for logs.
	maxErrorBody = 64 << 10
)

// ErrMissingCredentials is returned when the place id or API key is empty.
var ErrMissingCredentials = errors.New("places: place id and api key are required")

// UpstreamError is a non-2xx answer from the Places API.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("places api returned status %d", e.StatusCode)
}

// callerError wraps a failure that happened because the caller's context
// ended, not because the Places API misbehaved.
type callerError struct {
	err error
}

func (e *callerError) Error() string { return e.err.Error() }
func (e *callerError) Unwrap() error { return e.err }

// Credentials identify the place and authenticate the call.
type Credentials struct {
	PlaceID string
	APIKey  string
}

func (c Credentials) Valid() bool {
	return c.PlaceID != "" && c.APIKey != ""
}

// Observer receives the outcome and latency of every upstream call.
type Observer func(outcome string, d time.Duration)

type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *circuitbreaker.CircuitBreaker
	observe    Observer
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBreaker routes calls through cb. Only transport errors, decode errors
// and 5xx answers count as failures.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) ClientOption {
	return func(c *Client) { c.breaker = cb }
}

func WithObserver(o Observer) ClientOption {
	return func(c *Client) { c.observe = o }
}

// NewClient creates a Places client. An empty baseURL means DefaultBaseURL and
// a non-positive timeout means DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsCallerError reports whether err came from the caller cancelling the
// request or letting its own deadline pass. The client timeout is not a
// caller error.
func IsCallerError(err error) bool {
	var ce *callerError
	return errors.As(err, &ce) || errors.Is(err, context.Canceled)
}

// IsBreakerFailure reports whether err should count against the circuit
// breaker. Upstream 4xx answers and caller errors are not an outage.
func IsBreakerFailure(err error) bool {
	if err == nil || IsCallerError(err) {
		return false
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.StatusCode >= http.StatusInternalServerError
	}
	return true
}

// GetPlace fetches the place's reviews, rating, rating count and display name.
func (c *Client) GetPlace(ctx context.Context, creds Credentials) (*Place, error) {
	if !creds.Valid() {
		return nil, ErrMissingCredentials
	}

	var place *Place
	call := func() error {
		p, err := c.fetch(ctx, creds)
		if err != nil && ctx.Err() != nil {
			return &callerError{err: err}
		}
		place = p
		return err
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Call(call)
	} else {
		err = call()
	}
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			c.record("circuit_open", 0)
		}
		return nil, err
	}
	return place, nil
}

func (c *Client) fetch(ctx context.Context, creds Credentials) (*Place, error) {
	endpoint := fmt.Sprintf("%s/v1/places/%s?fields=%s",
		c.baseURL, url.PathEscape(creds.PlaceID), url.QueryEscape(FieldMask))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build places request: %w", err)
	}
	req.Header.Set("X-Goog-Api-Key", creds.APIKey)
	req.Header.Set("X-Goog-FieldMask", FieldMask)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record("transport_error", time.Since(start))
		return nil, fmt.Errorf("places request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.record("upstream_error", time.Since(start))
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var place Place
	if err := json.NewDecoder(resp.Body).Decode(&place); err != nil {
		c.record("decode_error", time.Since(start))
		return nil, fmt.Errorf("decode places response: %w", err)
	}

	c.record("success", time.Since(start))
	return &place, nil
}

func (c *Client) record(outcome string, d time.Duration) {
	if c.observe != nil {
		c.observe(outcome, d)
	}
}
