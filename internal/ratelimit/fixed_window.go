package ratelimit

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	count     int
	resetTime time.Time
}

// FixedWindowLimiter keeps one counter per key in process memory. A key's
// window starts at its first request and lasts for the configured window.
//
// Expired entries are removed lazily: a call to Allow sweeps the table when
// more than sweepEvery has passed since the previous sweep. There is no
// background goroutine, so an idle process never shrinks its table. The
// table is capped at maxEntries; see evictLocked.
//
// Counters are per process. Several replicas each enforce their own quota.
type FixedWindowLimiter struct {
	mu         sync.Mutex
	entries    map[string]*entry
	limit      int
	window     time.Duration
	sweepEvery time.Duration
	maxEntries int
	lastSweep  time.Time
	now        func() time.Time
}

type Option func(*FixedWindowLimiter)

// WithSweepInterval sets the minimum time between two sweeps.
func WithSweepInterval(d time.Duration) Option {
	return func(f *FixedWindowLimiter) { f.sweepEvery = d }
}

// WithMaxEntries caps the number of tracked keys. Zero or less disables the cap.
func WithMaxEntries(n int) Option {
	return func(f *FixedWindowLimiter) { f.maxEntries = n }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(f *FixedWindowLimiter) { f.now = now }
}

func NewFixedWindow(limit int, window time.Duration, opts ...Option) *FixedWindowLimiter {
	f := &FixedWindowLimiter{
		entries:    make(map[string]*entry),
		limit:      limit,
		window:     window, // Window of time duration
		sweepEvery: 5 * time.Minute,
		maxEntries: 10000,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.lastSweep = f.now()
	return f
}

func (f *FixedWindowLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()

	if now.Sub(f.lastSweep) > f.sweepEvery {
		f.sweepLocked(now)
	}

	e, ok := f.entries[key]
	if !ok || now.After(e.resetTime) {
		if !ok && f.maxEntries > 0 && len(f.entries) >= f.maxEntries {
			f.evictLocked(now)
		}
		e = &entry{count: 1, resetTime: now.Add(f.window)}
		f.entries[key] = e
		return f.decision(true, e), nil
	}

	if e.count >= f.limit {
		return f.decision(false, e), nil
	}

	e.count++
	return f.decision(true, e), nil
}

func (f *FixedWindowLimiter) decision(allowed bool, e *entry) Decision {
	remaining := f.limit - e.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   allowed,
		Limit:     f.limit,
		Remaining: remaining,
		ResetAt:   e.resetTime,
	}
}

// sweepLocked deletes every entry whose window has ended.
func (f *FixedWindowLimiter) sweepLocked(now time.Time) int {
	removed := 0
	for k, e := range f.entries {
		if now.After(e.resetTime) {
			delete(f.entries, k)
			removed++
		}
	}
	f.lastSweep = now
	return removed
}

// evictLocked makes room for one new key: expired entries go first, and if
// none have expired the entry closest to its reset is dropped.
func (f *FixedWindowLimiter) evictLocked(now time.Time) {
	if f.sweepLocked(now) > 0 {
		return
	}

	var oldestKey string
	var oldest time.Time
	for k, e := range f.entries {
		if oldestKey == "" || e.resetTime.Before(oldest) {
			oldestKey, oldest = k, e.resetTime
		}
	}
	delete(f.entries, oldestKey)
}

// Sweep forces a sweep regardless of the interval and returns the number of
// removed entries.
func (f *FixedWindowLimiter) Sweep() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sweepLocked(f.now())
}

func (f *FixedWindowLimiter) Clear(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
	return nil
}

// Len returns the number of tracked keys, expired or not.
func (f *FixedWindowLimiter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func (f *FixedWindowLimiter) Limit() int {
	return f.limit
}

func (f *FixedWindowLimiter) Window() time.Duration {
	return f.window
}
