package runtime

import (
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"time"
)

const retryDelay = 50 * time.Millisecond

// withRetry runs op once, then up to retries more times while it fails.
// Validation errors and context cancellation are returned as is; any other
// failure left after the last attempt is reported as ErrStoreUnavailable.
func withRetry(ctx context.Context, log *slog.Logger, name string, retries int, op func() error) error {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			log.Warn("Retrying store operation", "operation", name, "attempt", attempt, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
		}
		err = op()
		if err == nil || errors.Is(err, errors.ErrValidation) ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %v", errors.ErrStoreUnavailable, name, err)
}
