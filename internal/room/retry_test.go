package room

import (
	"context"
	"testing"
	"time"
)

func TestRetryPolicy_DelayGrowsExponentiallyToCap(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second, MaxDelay: 10 * time.Second}

	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}
	for attempt, w := range want {
		if got := p.Delay(attempt); got != w {
			t.Fatalf("Delay(%d) = %v, want %v", attempt, got, w)
		}
	}
}

func TestRetryPolicy_NegativeAttemptClampsToZero(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second, MaxDelay: 10 * time.Second}
	if got := p.Delay(-3); got != time.Second {
		t.Fatalf("Delay(-3) = %v, want %v", got, time.Second)
	}
}

func TestRetryPolicy_ZeroValueGetsDefaults(t *testing.T) {
	p := RetryPolicy{}.withDefaults()
	if p.MaxAttempts != 10 {
		t.Fatalf("MaxAttempts = %d, want 10", p.MaxAttempts)
	}
	if p.BaseDelay != 2*time.Second {
		t.Fatalf("BaseDelay = %v", p.BaseDelay)
	}
	if p.MaxDelay != 10*time.Second {
		t.Fatalf("MaxDelay = %v", p.MaxDelay)
	}
	if p.TotalDeadline != 30*time.Second {
		t.Fatalf("TotalDeadline = %v", p.TotalDeadline)
	}
}

func TestSleepCtx_ReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepCtx(ctx, time.Minute); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestSleepCtx_ZeroDurationIsImmediate(t *testing.T) {
	if err := sleepCtx(context.Background(), 0); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}
