package backoff

import (
	"context"
	"time"
)

// SleepWithContext waits for d or until ctx is cancelled, whichever
// comes first. Returns ctx.Err() on cancellation, nil otherwise.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
