package places

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenara-designs/reviews-gateway/internal/circuitbreaker"
)

var testCreds = Credentials{PlaceID: "ChIJ/test place", APIKey: "test-key"}

type recordedCall struct {
	outcome string
	d       time.Duration
}

type observerSpy struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (o *observerSpy) observe(outcome string, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, recordedCall{outcome: outcome, d: d})
}

func (o *observerSpy) outcomes() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.calls))
	for _, c := range o.calls {
		out = append(out, c.outcome)
	}
	return out
}

func TestClient_GetPlace_RequestShape(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"displayName":{"text":"Zenara"},"rating":4.6}`))
	}))
	defer srv.Close()

	spy := &observerSpy{}
	c := NewClient(srv.URL+"/", time.Second, WithObserver(spy.observe))

	place, err := c.GetPlace(context.Background(), testCreds)
	require.NoError(t, err)
	require.NotNil(t, place)

	assert.Equal(t, "Zenara", place.DisplayName.Text)
	assert.Equal(t, RatingNumber, place.Rating.Kind)

	require.NotNil(t, got)
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/v1/places/ChIJ%2Ftest%20place", got.URL.EscapedPath())
	assert.Equal(t, FieldMask, got.URL.Query().Get("fields"))
	assert.Equal(t, "test-key", got.Header.Get("X-Goog-Api-Key"))
	assert.Equal(t, FieldMask, got.Header.Get("X-Goog-FieldMask"))
	assert.NotContains(t, got.URL.RawQuery, "test-key")

	assert.Equal(t, []string{"success"}, spy.outcomes())
}

func TestClient_GetPlace_MissingCredentials(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second)

	for _, creds := range []Credentials{
		{},
		{PlaceID: "abc"},
		{APIKey: "key"},
	} {
		_, err := c.GetPlace(context.Background(), creds)
		assert.ErrorIs(t, err, ErrMissingCredentials)
	}
}

func TestClient_GetPlace_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	spy := &observerSpy{}
	c := NewClient(srv.URL, time.Second, WithObserver(spy.observe))

	_, err := c.GetPlace(context.Background(), testCreds)
	require.Error(t, err)

	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusForbidden, ue.StatusCode)
	assert.Contains(t, ue.Body, "API key not valid")
	assert.Equal(t, "places api returned status 403", ue.Error())
	assert.Equal(t, []string{"upstream_error"}, spy.outcomes())
}

func TestClient_GetPlace_ErrorBodyIsCapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("x", maxErrorBody+1024)))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).GetPlace(context.Background(), testCreds)

	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Len(t, ue.Body, maxErrorBody)
}

func TestClient_GetPlace_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"reviews":`))
	}))
	defer srv.Close()

	spy := &observerSpy{}
	_, err := NewClient(srv.URL, time.Second, WithObserver(spy.observe)).GetPlace(context.Background(), testCreds)
	require.Error(t, err)

	var ue *UpstreamError
	assert.False(t, errors.As(err, &ue))
	assert.Equal(t, []string{"decode_error"}, spy.outcomes())
}

func TestClient_GetPlace_MalformedFieldsStillDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"displayName":"Zenara","userRatingCount":57.0,"reviews":[{"rating":"5"},{"publishTime":1700000000}]}`))
	}))
	defer srv.Close()

	spy := &observerSpy{}
	place, err := NewClient(srv.URL, time.Second, WithObserver(spy.observe)).GetPlace(context.Background(), testCreds)
	require.NoError(t, err)
	require.NotNil(t, place.UserRatingCount)
	assert.Equal(t, 57, *place.UserRatingCount)
	assert.Len(t, place.Reviews, 2)
	assert.Equal(t, []string{"success"}, spy.outcomes())
}

func TestClient_GetPlace_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	spy := &observerSpy{}
	c := NewClient(srv.URL, 50*time.Millisecond, WithObserver(spy.observe))

	start := time.Now()
	_, err := c.GetPlace(context.Background(), testCreds)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, []string{"transport_error"}, spy.outcomes())
}

func TestClient_GetPlace_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(srv.URL, time.Second).GetPlace(ctx, testCreds)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_Breaker_OpensOn5xx(t *testing.T) {
	var hits int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cb := circuitbreaker.New(circuitbreaker.Config{
		MaxFailures: 2,
		Timeout:     time.Minute,
		IsFailure:   IsBreakerFailure,
	})
	spy := &observerSpy{}
	c := NewClient(srv.URL, time.Second, WithBreaker(cb), WithObserver(spy.observe))

	for i := 0; i < 2; i++ {
		_, err := c.GetPlace(context.Background(), testCreds)
		var ue *UpstreamError
		require.True(t, errors.As(err, &ue))
	}
	assert.Equal(t, circuitbreaker.StateOpen, cb.State())

	_, err := c.GetPlace(context.Background(), testCreds)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)

	mu.Lock()
	assert.Equal(t, 2, hits)
	mu.Unlock()
	assert.Equal(t, []string{"upstream_error", "upstream_error", "circuit_open"}, spy.outcomes())
}

func TestClient_Breaker_IgnoresClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cb := circuitbreaker.New(circuitbreaker.Config{
		MaxFailures: 1,
		IsFailure:   IsBreakerFailure,
	})
	c := NewClient(srv.URL, time.Second, WithBreaker(cb))

	for i := 0; i < 3; i++ {
		_, err := c.GetPlace(context.Background(), testCreds)
		var ue *UpstreamError
		require.True(t, errors.As(err, &ue))
		assert.Equal(t, http.StatusNotFound, ue.StatusCode)
	}
	assert.Equal(t, circuitbreaker.StateClosed, cb.State())
}

func TestClient_Breaker_IgnoresCallerCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"displayName":{"text":"Zenara"}}`))
	}))
	defer srv.Close()

	cb := circuitbreaker.New(circuitbreaker.Config{
		MaxFailures: 1,
		Timeout:     time.Minute,
		IsFailure:   IsBreakerFailure,
		IsNeutral:   IsCallerError,
	})
	c := NewClient(srv.URL, time.Second, WithBreaker(cb))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 5; i++ {
		_, err := c.GetPlace(ctx, testCreds)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.True(t, IsCallerError(err))
	}
	assert.Equal(t, circuitbreaker.StateClosed, cb.State())

	place, err := c.GetPlace(context.Background(), testCreds)
	require.NoError(t, err)
	assert.Equal(t, "Zenara", place.DisplayName.Text)
}

func TestClient_Breaker_CallerDeadlineIsNotAnOutage(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cb := circuitbreaker.New(circuitbreaker.Config{
		MaxFailures: 1,
		Timeout:     time.Minute,
		IsFailure:   IsBreakerFailure,
		IsNeutral:   IsCallerError,
	})

	// the caller's deadline is shorter than the client timeout
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewClient(srv.URL, 5*time.Second, WithBreaker(cb)).GetPlace(ctx, testCreds)
	require.Error(t, err)
	assert.True(t, IsCallerError(err))
	assert.Equal(t, circuitbreaker.StateClosed, cb.State())

	// the client timeout firing is an upstream problem
	_, err = NewClient(srv.URL, 20*time.Millisecond, WithBreaker(cb)).GetPlace(context.Background(), testCreds)
	require.Error(t, err)
	assert.False(t, IsCallerError(err))
	assert.Equal(t, circuitbreaker.StateOpen, cb.State())
}

func TestIsBreakerFailure(t *testing.T) {
	assert.False(t, IsBreakerFailure(nil))
	assert.False(t, IsBreakerFailure(context.Canceled))
	assert.False(t, IsBreakerFailure(&callerError{err: context.DeadlineExceeded}))
	assert.False(t, IsBreakerFailure(&UpstreamError{StatusCode: 429}))
	assert.True(t, IsBreakerFailure(&UpstreamError{StatusCode: 500}))
	assert.True(t, IsBreakerFailure(errors.New("dial tcp: connection refused")))
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("", 0)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
}
