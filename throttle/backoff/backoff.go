// Package backoff provides pluggable cooldown strategies used when the
// remote API throttles without suggesting a retry interval. All strategies
// are safe for concurrent use (they are stateless).
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the suspension length for a rate-limit hit.
type Strategy interface {
	// Delay returns how long to suspend dispatch for hit n (1-indexed).
	// Hit 1 is the first rate-limit signal since the last successful call.
	Delay(hit int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always returns the same cooldown regardless of hit count.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant cooldown strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the cooldown on each consecutive hit.
// Delay = min(Initial * 2^(hit-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential cooldown strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^(hit-1), capped at Max.
func (e *Exponential) Delay(hit int) time.Duration {
	d := time.Duration(float64(e.Initial) * math.Pow(2, float64(hit-1)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// ExponentialWithJitter (full jitter)
// ──────────────────────────────────────────────────

// ExponentialWithJitter applies full jitter to an exponential base.
// Delay = random value in [0, min(Initial * 2^(hit-1), Max)].
// This prevents synchronized resumption when several engine instances
// back off from the same shared quota.
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialWithJitter creates an exponential cooldown with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

// Delay returns a random duration in [0, min(Initial * 2^(hit-1), Max)].
func (e *ExponentialWithJitter) Delay(hit int) time.Duration {
	base := float64(e.Initial) * math.Pow(2, float64(hit-1))
	if e.Max > 0 && base > float64(e.Max) {
		base = float64(e.Max)
	}
	return time.Duration(rand.Float64() * base) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// DefaultCooldown returns the cooldown used when the remote API gives no
// Retry-After: exponential with 30s initial and 10m max.
func DefaultCooldown() Strategy {
	return NewExponential(30*time.Second, 10*time.Minute)
}
