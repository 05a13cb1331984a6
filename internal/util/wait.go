package util

import (
	"context"
	"time"
)

// WaitFor sleeps for d or until the context is cancelled, whichever comes
// first. Used for inter-batch throttling delays and the document retention
// window, where plain time.Sleep would ignore shutdown.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
