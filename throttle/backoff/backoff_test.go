package backoff

import (
	"testing"
	"time"
)

func TestConstant(t *testing.T) {
	c := NewConstant(30 * time.Second)

	for _, hit := range []int{1, 2, 10} {
		if d := c.Delay(hit); d != 30*time.Second {
			t.Fatalf("hit %d: expected 30s, got %v", hit, d)
		}
	}
}

func TestExponential(t *testing.T) {
	e := NewExponential(time.Second, time.Minute)

	cases := []struct {
		hit  int
		want time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 32 * time.Second},
		{7, time.Minute},   // capped
		{100, time.Minute}, // capped
	}
	for _, tc := range cases {
		if d := e.Delay(tc.hit); d != tc.want {
			t.Fatalf("hit %d: expected %v, got %v", tc.hit, tc.want, d)
		}
	}
}

func TestExponential_NoCap(t *testing.T) {
	e := NewExponential(time.Second, 0)

	if d := e.Delay(10); d != 512*time.Second {
		t.Fatalf("expected 512s without a cap, got %v", d)
	}
}

func TestExponentialWithJitter_Bounds(t *testing.T) {
	e := NewExponentialWithJitter(time.Second, time.Minute)

	for range 100 {
		d := e.Delay(3) // base 4s
		if d < 0 || d > 4*time.Second {
			t.Fatalf("jittered delay out of [0, 4s]: %v", d)
		}
	}

	// Above the cap the jitter range is [0, Max].
	for range 100 {
		d := e.Delay(20)
		if d < 0 || d > time.Minute {
			t.Fatalf("jittered delay out of [0, 1m]: %v", d)
		}
	}
}

func TestDefaultCooldown(t *testing.T) {
	d := DefaultCooldown()

	if got := d.Delay(1); got != 30*time.Second {
		t.Fatalf("expected 30s first cooldown, got %v", got)
	}
	if got := d.Delay(100); got != 10*time.Minute {
		t.Fatalf("expected 10m cap, got %v", got)
	}
}
