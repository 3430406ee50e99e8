package adapter

import (
	"context"
	"sync"
	"time"
)

// CallStats accumulates quota telemetry for one logical operation.
// The Adapter installs a recorder into the context before invoking the
// operation; the remote client implementation reports into it through the
// package-level Record helpers. Safe for concurrent use — a logical
// operation may fan out into parallel network requests.
type CallStats struct {
	mu          sync.Mutex
	requests    int
	remaining   *int64
	rateLimited bool
	retryAfter  time.Duration
}

type statsKey struct{}

func withStats(ctx context.Context, s *CallStats) context.Context {
	return context.WithValue(ctx, statsKey{}, s)
}

func statsFrom(ctx context.Context) (*CallStats, bool) {
	s, ok := ctx.Value(statsKey{}).(*CallStats)
	return s, ok
}

// RecordRequest marks one underlying network request performed by the
// current logical operation. No-op outside an Adapter-managed call.
func RecordRequest(ctx context.Context) {
	s, ok := statsFrom(ctx)
	if !ok {
		return
	}
	s.mu.Lock()
	s.requests++
	s.mu.Unlock()
}

// RecordRemainingReads reports the remote API's explicit remaining-quota
// value (e.g. from a rate-limit response header) for the current call.
// The last reported value wins.
func RecordRemainingReads(ctx context.Context, remaining int64) {
	s, ok := statsFrom(ctx)
	if !ok {
		return
	}
	s.mu.Lock()
	s.remaining = &remaining
	s.mu.Unlock()
}

// RecordRateLimit reports that the remote API throttled the current call.
// retryAfter is the server-suggested cooldown; zero means none was given.
func RecordRateLimit(ctx context.Context, retryAfter time.Duration) {
	s, ok := statsFrom(ctx)
	if !ok {
		return
	}
	s.mu.Lock()
	s.rateLimited = true
	if retryAfter > s.retryAfter {
		s.retryAfter = retryAfter
	}
	s.mu.Unlock()
}

// snapshot returns the accumulated telemetry.
func (s *CallStats) snapshot() (requests int, remaining *int64, rateLimited bool, retryAfter time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests, s.remaining, s.rateLimited, s.retryAfter
}
