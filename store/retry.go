package store

import (
	"context"
	"errors"
	"time"

	"github.com/jacentio/stratum/backend"
)

// withRetry runs op, retrying with exponential backoff while the backing
// store reports unavailability. Validation and not-found conditions are
// deterministic and pass through on the first attempt. Cancellation wins
// over the backoff timer.
func withRetry(ctx context.Context, cfg Config, op func() error) error {
	delay := cfg.RetryBackoff
	var err error
	for attempt := 0; attempt < cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		}
		err = op()
		if err == nil || !errors.Is(err, backend.ErrUnavailable) {
			return err
		}
	}
	return err
}
