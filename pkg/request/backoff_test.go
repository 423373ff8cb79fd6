package request

import (
	"context"
	"testing"
	"time"
)

func TestBackoffEscalates(t *testing.T) {
	b := NewProviderBackoff(100*time.Millisecond, time.Minute)

	b.RecordFailure()
	_, wait1 := b.GetState()
	b.RecordFailure()
	_, wait2 := b.GetState()

	if wait1 <= 0 {
		t.Error("expected wait after first failure")
	}
	if wait2 <= wait1 {
		t.Errorf("expected escalating delay, got %v then %v", wait1, wait2)
	}
}

func TestBackoffSuccessResets(t *testing.T) {
	b := NewProviderBackoff(100*time.Millisecond, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	failures, wait := b.GetState()
	if failures != 0 {
		t.Errorf("failures = %d, want 0 after success", failures)
	}
	if wait != 0 {
		t.Errorf("wait = %v, want 0 after success", wait)
	}

	if err := b.Wait(context.Background()); err != nil {
		t.Errorf("Wait() error: %v", err)
	}
}

func TestBackoffWaitHonorsContext(t *testing.T) {
	b := NewProviderBackoff(10*time.Second, time.Minute)
	b.RecordFailure()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := b.Wait(ctx)
	if err == nil {
		t.Fatal("Wait() expected context error")
	}
	if time.Since(start) > time.Second {
		t.Error("Wait() did not return promptly on cancellation")
	}
}

func TestBackoffCapsAtMax(t *testing.T) {
	b := NewProviderBackoff(time.Second, 2*time.Second)
	for i := 0; i < 10; i++ {
		b.RecordFailure()
	}
	_, wait := b.GetState()
	// Max plus up to 25% jitter
	if wait > 3*time.Second {
		t.Errorf("wait = %v, want capped near max", wait)
	}
}
