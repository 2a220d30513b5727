package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time // end of the caller's current window
}

type Limiter interface {
	// Allow records one request for key and reports whether it fits the quota.
	Allow(ctx context.Context, key string) (Decision, error)

	// Clear forgets key, so its next request opens a new window.
	Clear(ctx context.Context, key string) error

	Limit() int

	Window() time.Duration
}
