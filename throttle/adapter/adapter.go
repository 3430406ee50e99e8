// Package adapter wraps execution of remote operations and tracks quota
// telemetry from their responses: the remaining request allowance, the
// rolling window start, and rate-limit signals.
package adapter

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// MinRemainingReads is the floor the tracked allowance never falls
	// below. Keeping it above zero avoids a starvation deadlock where the
	// pacing delay would grow unbounded.
	MinRemainingReads int64 = 1

	// DefaultInitialReads is the assumed allowance before the remote API
	// reports an explicit value. Matches the usual per-hour subscription
	// read quota of the management API.
	DefaultInitialReads int64 = 12000

	// DefaultWindowLength is the rolling quota window length.
	DefaultWindowLength = time.Hour
)

// Result is the outcome of one logical operation executed through the
// Adapter.
type Result struct {
	// Value is the operation's return value; nil on failure.
	Value any

	// Err is the operation's error, if any.
	Err error

	// RequestCount is how many underlying network requests the operation
	// consumed (at least 1).
	RequestCount int

	// RateLimited reports whether the remote API throttled the call.
	RateLimited bool

	// RetryAfter is the server-suggested cooldown; zero if none was given.
	RetryAfter time.Duration

	// WindowReset reports whether this call's telemetry indicated a fresh
	// quota window (remaining allowance grew).
	WindowReset bool
}

// Window is a read-only snapshot of the tracked quota window.
type Window struct {
	// RemainingReads is the last known remaining allowance, clamped to
	// MinRemainingReads.
	RemainingReads int64

	// DefaultReads is the highest remaining value ever observed, used as
	// the fallback baseline for a fresh window.
	DefaultReads int64

	// Start is when the current window was last observed to begin.
	Start time.Time
}

// Adapter executes remote operations and maintains the quota window.
// It is safe for concurrent use.
type Adapter struct {
	mu             sync.Mutex
	remainingReads int64
	defaultReads   int64
	windowStart    time.Time
	windowLength   time.Duration

	logger *slog.Logger
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithWindowLength sets the rolling quota window length.
func WithWindowLength(d time.Duration) AdapterOption {
	return func(a *Adapter) { a.windowLength = d }
}

// WithInitialReads sets the assumed allowance before the first explicit
// telemetry arrives.
func WithInitialReads(n int64) AdapterOption {
	return func(a *Adapter) {
		a.remainingReads = n
		a.defaultReads = n
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) AdapterOption {
	return func(a *Adapter) { a.logger = l }
}

// New creates an Adapter with the window starting now.
func New(opts ...AdapterOption) *Adapter {
	a := &Adapter{
		remainingReads: DefaultInitialReads,
		defaultReads:   DefaultInitialReads,
		windowStart:    time.Now(),
		windowLength:   DefaultWindowLength,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Execute runs one logical operation with a telemetry recorder installed
// in the context, then folds the recorded telemetry into the quota window.
// An operation that records no requests is counted as one.
func (a *Adapter) Execute(ctx context.Context, fn func(ctx context.Context) (any, error)) Result {
	stats := &CallStats{}
	ctx = withStats(ctx, stats)

	value, err := fn(ctx)

	requests, remaining, rateLimited, retryAfter := stats.snapshot()
	if requests < 1 {
		requests = 1
	}

	windowReset := a.NotifyRemainingReads(remaining, requests)

	return Result{
		Value:        value,
		Err:          err,
		RequestCount: requests,
		RateLimited:  rateLimited,
		RetryAfter:   retryAfter,
		WindowReset:  windowReset,
	}
}

// NotifyRemainingReads folds one call's telemetry into the quota window.
//
// An explicit remaining value overwrites the tracked allowance (clamped to
// the floor); a value strictly greater than the previous observation means
// the remote started a fresh window, so the window start resets to now and
// the baseline is raised if exceeded. Without explicit telemetry the
// allowance is decremented by requestCount, clamped to the floor — unless
// the tracked window has fully aged out first, in which case the remote
// must have opened a new window: the allowance falls back to the
// defaultReads baseline and the window restarts before the decrement.
//
// Returns true when a fresh window was detected.
func (a *Adapter) NotifyRemainingReads(remaining *int64, requestCount int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if remaining == nil {
		reset := false
		if time.Since(a.windowStart) >= a.windowLength {
			a.windowStart = time.Now()
			a.remainingReads = a.defaultReads
			reset = true
			a.logger.Debug("quota window aged out, falling back to baseline",
				slog.Int64("default_reads", a.defaultReads),
			)
		}
		a.remainingReads -= int64(requestCount)
		if a.remainingReads < MinRemainingReads {
			a.remainingReads = MinRemainingReads
		}
		return reset
	}

	v := *remaining
	if v < MinRemainingReads {
		v = MinRemainingReads
	}

	reset := v > a.remainingReads
	if reset {
		a.windowStart = time.Now()
		a.logger.Debug("quota window reset",
			slog.Int64("remaining_reads", v),
			slog.Int64("previous", a.remainingReads),
		)
	}
	if v > a.defaultReads {
		a.defaultReads = v
	}
	a.remainingReads = v
	return reset
}

// RemainingReads returns the last known remaining allowance.
func (a *Adapter) RemainingReads() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.remainingReads
}

// DefaultReads returns the highest remaining value ever observed — the
// baseline a fresh window falls back to when no explicit telemetry arrives.
func (a *Adapter) DefaultReads() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.defaultReads
}

// WindowWidth returns the time left until the current quota window ends,
// floored at zero.
func (a *Adapter) WindowWidth() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()

	width := time.Until(a.windowStart.Add(a.windowLength))
	if width < 0 {
		return 0
	}
	return width
}

// Snapshot returns a read-only copy of the quota window.
func (a *Adapter) Snapshot() Window {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Window{
		RemainingReads: a.remainingReads,
		DefaultReads:   a.defaultReads,
		Start:          a.windowStart,
	}
}
