package ledger

import (
	"context"
	"math/rand"
	"time"
)

// BackoffPolicy describes a bounded exponential retry schedule.
type BackoffPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
}

// DefaultBackoff is the write-retry schedule used against the durable store.
var DefaultBackoff = BackoffPolicy{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    10 * time.Second,
	Jitter:      true,
}

// Delay returns the pause before the given retry attempt (1-based).
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}

	if p.Jitter && delay >= 2 {
		delay += time.Duration(rand.Int63n(int64(delay) / 2))
	}

	return delay
}

// Retry invokes fn up to MaxAttempts times, sleeping the scheduled delay
// between failures. The last error is returned when attempts are exhausted.
func (p BackoffPolicy) Retry(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}

		if attempt == attempts {
			break
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}
