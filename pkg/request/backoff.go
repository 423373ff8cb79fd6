package request

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// ProviderBackoff tracks failure state for a provider and computes
// escalating delays with jitter.
type ProviderBackoff struct {
	mu        sync.Mutex
	failures  int
	nextTry   time.Time
	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewProviderBackoff creates a backoff tracker.
func NewProviderBackoff(baseDelay, maxDelay time.Duration) *ProviderBackoff {
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxDelay <= 0 {
		maxDelay = 5 * time.Minute
	}
	return &ProviderBackoff{baseDelay: baseDelay, maxDelay: maxDelay}
}

// Wait blocks until the provider may be tried again, or the context ends.
func (b *ProviderBackoff) Wait(ctx context.Context) error {
	b.mu.Lock()
	wait := time.Until(b.nextTry)
	b.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordFailure escalates the delay before the next attempt.
func (b *ProviderBackoff) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	delay := b.calculateDelay()
	b.nextTry = time.Now().Add(delay)
}

// RecordSuccess resets the failure state.
func (b *ProviderBackoff) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.nextTry = time.Time{}
}

func (b *ProviderBackoff) calculateDelay() time.Duration {
	delay := time.Duration(math.Pow(2, float64(b.failures-1))) * b.baseDelay
	if delay > b.maxDelay {
		delay = b.maxDelay
	}
	// Jitter avoids thundering herds when several callers back off together
	jitter := time.Duration(rand.Int63n(int64(delay) / 4))
	return delay + jitter
}

// GetState reports the current failure count and remaining wait.
func (b *ProviderBackoff) GetState() (failures int, wait time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wait = time.Until(b.nextTry)
	if wait < 0 {
		wait = 0
	}
	return b.failures, wait
}
