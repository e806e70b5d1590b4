package store

import (
	"context"
	"time"

	"protrack/model"
)

// MaxAttempts bounds how often a read-compute-write cycle is re-run after
// a conflict or a transient store failure before the error surfaces.
const MaxAttempts = 5

// Retry re-executes op until it succeeds, fails terminally, or the attempt
// budget is spent. op must re-read and recompute on every call; replaying a
// stale computed write is exactly the lost-update hazard this exists to
// prevent.
func Retry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if err = op(); err == nil || !model.IsRetryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 25 * time.Millisecond):
		}
	}
	return err
}
