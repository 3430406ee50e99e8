package strategy

import (
	"testing"
	"time"

	"github.com/postsharp/teamcity-azure-agent/throttle/adapter"
	"github.com/postsharp/teamcity-azure-agent/throttle/backoff"
	"github.com/postsharp/teamcity-azure-agent/throttle/task"
)

// ---------------------------------------------------------------------------
// Pacing
// ---------------------------------------------------------------------------

func TestApplyTaskChanges_SpreadsWindowAcrossAllowance(t *testing.T) {
	a := adapter.New(
		adapter.WithWindowLength(time.Hour),
		adapter.WithInitialReads(100),
	)
	s := New(a, WithMaxDelay(time.Hour))

	remaining := int64(50)
	a.NotifyRemainingReads(&remaining, 1)

	s.ApplyTaskChanges()
	d := s.Delay(task.ExecNonBlocking)

	// width ≈ 1h spread across 50 reads ≈ 72s; allow for elapsed test time.
	if d < 70*time.Second || d > 72*time.Second {
		t.Fatalf("expected pacing near 72s, got %v", d)
	}
}

func TestApplyTaskChanges_CappedByMaxDelay(t *testing.T) {
	a := adapter.New(
		adapter.WithWindowLength(time.Hour),
		adapter.WithInitialReads(2),
	)
	s := New(a, WithMaxDelay(10*time.Millisecond))

	s.ApplyTaskChanges()

	if d := s.Delay(task.ExecNonBlocking); d != 10*time.Millisecond {
		t.Fatalf("expected cap 10ms, got %v", d)
	}
}

func TestApplyTaskChanges_DepletedQuotaGrowsDelay(t *testing.T) {
	a := adapter.New(
		adapter.WithWindowLength(time.Hour),
		adapter.WithInitialReads(1000),
	)
	s := New(a, WithMaxDelay(time.Hour))

	s.ApplyTaskChanges()
	wide := s.Delay(task.ExecNonBlocking)

	remaining := int64(10)
	a.NotifyRemainingReads(&remaining, 1)
	s.ApplyTaskChanges()
	narrow := s.Delay(task.ExecNonBlocking)

	if narrow <= wide {
		t.Fatalf("depleting quota should grow the delay: %v -> %v", wide, narrow)
	}
}

func TestDelay_BlockingClass(t *testing.T) {
	a := adapter.New(adapter.WithInitialReads(2))
	s := New(a)

	s.ApplyTaskChanges()

	// Blocking tasks are tick-paced only by default.
	if d := s.Delay(task.ExecBlocking); d != 0 {
		t.Fatalf("expected zero blocking delay, got %v", d)
	}

	s2 := New(a, WithBlockingDelay(5*time.Millisecond))
	if d := s2.Delay(task.ExecBlocking); d != 5*time.Millisecond {
		t.Fatalf("expected configured blocking delay, got %v", d)
	}
}

// ---------------------------------------------------------------------------
// Suspension
// ---------------------------------------------------------------------------

func TestNotifyRateLimitReached_HonorsRetryAfter(t *testing.T) {
	a := adapter.New()
	// A long fallback cooldown proves retryAfter takes precedence.
	s := New(a, WithCooldown(backoff.NewConstant(10*time.Second)))

	s.NotifyRateLimitReached(40 * time.Millisecond)

	if s.Flow() != FlowSuspended {
		t.Fatal("expected suspension after rate limit")
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	for s.Flow() == FlowSuspended {
		if time.Now().After(deadline) {
			t.Fatal("suspension did not heal within the server-suggested interval")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNotifyRateLimitReached_CooldownFallback(t *testing.T) {
	a := adapter.New()
	s := New(a, WithCooldown(backoff.NewConstant(30*time.Millisecond)))

	s.NotifyRateLimitReached(0)

	if s.Flow() != FlowSuspended {
		t.Fatal("expected suspension from cooldown fallback")
	}

	time.Sleep(60 * time.Millisecond)
	if s.Flow() != FlowActive {
		t.Fatal("suspension should self-heal once the cooldown elapses")
	}
}

func TestNotifyRateLimitReached_NeverShortensSuspension(t *testing.T) {
	a := adapter.New()
	s := New(a)

	s.NotifyRateLimitReached(200 * time.Millisecond)
	s.NotifyRateLimitReached(10 * time.Millisecond)

	// The shorter second signal must not end the longer suspension early.
	time.Sleep(50 * time.Millisecond)
	if s.Flow() != FlowSuspended {
		t.Fatal("a shorter retry-after must not cut an active suspension")
	}
}

func TestNotifyCompleted_ResetsEscalation(t *testing.T) {
	a := adapter.New()
	s := New(a, WithCooldown(backoff.NewExponential(20*time.Millisecond, time.Second)))

	// Two consecutive hits escalate: 20ms then 40ms.
	s.NotifyRateLimitReached(0)
	s.NotifyRateLimitReached(0)
	time.Sleep(80 * time.Millisecond)
	if s.Flow() != FlowActive {
		t.Fatal("escalated suspension should have elapsed")
	}

	// A successful call resets the streak; the next hit is back to 20ms.
	s.NotifyCompleted(true)
	start := time.Now()
	s.NotifyRateLimitReached(0)
	for s.Flow() == FlowSuspended {
		time.Sleep(2 * time.Millisecond)
	}
	if elapsed := time.Since(start); elapsed > 60*time.Millisecond {
		t.Fatalf("expected reset cooldown near 20ms, suspension lasted %v", elapsed)
	}
}

func TestNotifyCompleted_IdleTickKeepsStreak(t *testing.T) {
	a := adapter.New()
	s := New(a, WithCooldown(backoff.NewExponential(20*time.Millisecond, time.Second)))

	s.NotifyRateLimitReached(0)
	time.Sleep(40 * time.Millisecond)

	// An idle tick performed no requests and must not reset the streak:
	// the next hit escalates to 40ms.
	s.NotifyCompleted(false)
	start := time.Now()
	s.NotifyRateLimitReached(0)
	for s.Flow() == FlowSuspended {
		time.Sleep(2 * time.Millisecond)
	}
	if elapsed := time.Since(start); elapsed < 35*time.Millisecond {
		t.Fatalf("expected escalated cooldown near 40ms, suspension lasted %v", elapsed)
	}
}

// ---------------------------------------------------------------------------
// Dispatch ceiling
// ---------------------------------------------------------------------------

func TestAllowDispatch_NoCeiling(t *testing.T) {
	s := New(adapter.New())
	for range 10 {
		if !s.AllowDispatch() {
			t.Fatal("without a ceiling every dispatch is allowed")
		}
	}
}

func TestAllowDispatch_Ceiling(t *testing.T) {
	s := New(adapter.New(), WithDispatchCeiling(1, 1))

	if !s.AllowDispatch() {
		t.Fatal("first dispatch should pass the ceiling")
	}
	if s.AllowDispatch() {
		t.Fatal("second immediate dispatch should be held by the ceiling")
	}
}
