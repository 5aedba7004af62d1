package backoff

import (
	"context"
	"testing"
	"time"
)

func TestComputeBackoff_GrowsByFactorWithoutJitter(t *testing.T) {
	p := BackoffPolicy{InitialMs: 100, MaxMs: 100000, Factor: 2, Jitter: 0}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
	}
	for i, w := range want {
		if got := ComputeBackoff(p, i+1); got != w {
			t.Errorf("attempt %d: got %v, want %v", i+1, got, w)
		}
	}
}

func TestComputeBackoff_ClampsToMax(t *testing.T) {
	p := BackoffPolicy{InitialMs: 1000, MaxMs: 2500, Factor: 3, Jitter: 0}
	if got := ComputeBackoff(p, 5); got != 2500*time.Millisecond {
		t.Errorf("got %v, want 2.5s", got)
	}
}

func TestComputeBackoff_AttemptBelowOneTreatedAsFirst(t *testing.T) {
	p := BackoffPolicy{InitialMs: 100, MaxMs: 100000, Factor: 2, Jitter: 0}
	if got := ComputeBackoff(p, 0); got != 100*time.Millisecond {
		t.Errorf("attempt 0: got %v, want 100ms", got)
	}
	if got := ComputeBackoff(p, -3); got != 100*time.Millisecond {
		t.Errorf("attempt -3: got %v, want 100ms", got)
	}
}

func TestComputeBackoff_JitterStaysWithinBounds(t *testing.T) {
	p := BackoffPolicy{InitialMs: 100, MaxMs: 100000, Factor: 2, Jitter: 1}
	for i := 0; i < 200; i++ {
		got := ComputeBackoff(p, 2)
		if got < 200*time.Millisecond || got > 400*time.Millisecond {
			t.Fatalf("jittered delay %v outside [200ms, 400ms]", got)
		}
	}
}

func TestSleepWithContext_CompletesForShortDuration(t *testing.T) {
	if err := SleepWithContext(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSleepWithContext_ZeroAndNegativeReturnImmediately(t *testing.T) {
	start := time.Now()
	if err := SleepWithContext(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := SleepWithContext(context.Background(), -time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("non-positive sleeps took %v", elapsed)
	}
}

func TestSleepWithContext_CancelledContextUnblocks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- SleepWithContext(ctx, time.Minute) }()
	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sleep did not unblock on cancellation")
	}
}
