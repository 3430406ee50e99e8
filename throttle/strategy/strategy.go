// Package strategy decides the engine-wide flow state (active/suspended)
// and the pacing delay before a task type may dispatch again, from live
// quota telemetry and rate-limit notifications.
package strategy

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/postsharp/teamcity-azure-agent/throttle/adapter"
	"github.com/postsharp/teamcity-azure-agent/throttle/backoff"
	"github.com/postsharp/teamcity-azure-agent/throttle/task"
)

// Flow is the engine-wide dispatch gate.
type Flow int

const (
	// FlowActive allows dispatch, subject to per-type pacing.
	FlowActive Flow = iota

	// FlowSuspended blocks all dispatch until the suspension elapses.
	FlowSuspended
)

// String returns the flow state name.
func (f Flow) String() string {
	switch f {
	case FlowActive:
		return "active"
	case FlowSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Strategy computes flow state and pacing. It is safe to notify from
// arbitrary completion goroutines.
type Strategy struct {
	adapter  *adapter.Adapter
	cooldown backoff.Strategy
	limiter  *rate.Limiter // optional hard dispatch ceiling
	logger   *slog.Logger

	blockingDelay time.Duration
	maxDelay      time.Duration

	mu               sync.Mutex
	nonBlockingDelay time.Duration
	suspendedUntil   time.Time
	consecutiveHits  int
}

// Option configures a Strategy.
type Option func(*Strategy)

// WithCooldown sets the cooldown strategy applied when the remote API
// throttles without a Retry-After.
func WithCooldown(b backoff.Strategy) Option {
	return func(s *Strategy) { s.cooldown = b }
}

// WithBlockingDelay sets the minimum interval between dispatches of
// blocking (latency-sensitive) task types. Zero means tick-paced only.
func WithBlockingDelay(d time.Duration) Option {
	return func(s *Strategy) { s.blockingDelay = d }
}

// WithMaxDelay caps the adaptive pacing delay for non-blocking task types.
func WithMaxDelay(d time.Duration) Option {
	return func(s *Strategy) { s.maxDelay = d }
}

// WithDispatchCeiling installs a token-bucket ceiling on dispatches per
// second, applied on top of quota pacing.
func WithDispatchCeiling(perSecond float64, burst int) Option {
	return func(s *Strategy) {
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Strategy) { s.logger = l }
}

// New creates a Strategy reading quota telemetry from the given adapter.
func New(a *adapter.Adapter, opts ...Option) *Strategy {
	s := &Strategy{
		adapter:  a,
		cooldown: backoff.DefaultCooldown(),
		logger:   slog.Default(),
		maxDelay: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Flow returns the current flow state. A suspension heals itself: once the
// interval elapses the state reads FlowActive again without any
// notification.
func (s *Strategy) Flow() Flow {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Now().Before(s.suspendedUntil) {
		return FlowSuspended
	}
	return FlowActive
}

// NotifyCompleted records the outcome of one tick. performedRequests is
// true only when a dispatch consumed quota without being throttled; idle
// ticks and rate-limited calls leave the rate-limit streak untouched so
// consecutive hits keep escalating the cooldown.
func (s *Strategy) NotifyCompleted(performedRequests bool) {
	if !performedRequests {
		return
	}
	s.mu.Lock()
	s.consecutiveHits = 0
	s.mu.Unlock()
}

// NotifyRateLimitReached suspends dispatch. The server-suggested retryAfter
// is honored when present; otherwise the cooldown strategy escalates with
// each consecutive hit.
func (s *Strategy) NotifyRateLimitReached(retryAfter time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.consecutiveHits++
	d := retryAfter
	if d <= 0 {
		d = s.cooldown.Delay(s.consecutiveHits)
	}

	until := time.Now().Add(d)
	if until.After(s.suspendedUntil) {
		s.suspendedUntil = until
	}

	s.logger.Warn("rate limit reached, dispatch suspended",
		slog.Duration("cooldown", d),
		slog.Int("consecutive_hits", s.consecutiveHits),
	)
}

// ApplyTaskChanges recomputes the adaptive pacing after a dispatch: the
// remaining window width spread evenly across the remaining allowance. As
// the window ages with quota depleting the delay grows; a fresh window
// snaps it back down.
func (s *Strategy) ApplyTaskChanges() {
	width := s.adapter.WindowWidth()
	remaining := s.adapter.RemainingReads()

	d := width / time.Duration(remaining)
	if d > s.maxDelay {
		d = s.maxDelay
	}

	s.mu.Lock()
	s.nonBlockingDelay = d
	s.mu.Unlock()
}

// Delay returns the minimum interval since the last dispatch before a task
// of the given execution type may run again.
func (s *Strategy) Delay(e task.ExecutionType) time.Duration {
	if e == task.ExecBlocking {
		return s.blockingDelay
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonBlockingDelay
}

// AllowDispatch consults the optional dispatch ceiling. Always true when
// no ceiling is configured.
func (s *Strategy) AllowDispatch() bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}
