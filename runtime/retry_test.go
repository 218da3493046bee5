package runtime

import (
	"chat-relay/errors"
	"context"
	stderrors "errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithRetry_Recovers_From_Transient_Failure(t *testing.T) {
	req := require.New(t)
	attempts := 0

	err := withRetry(context.Background(), slog.Default(), "op", 2, func() error {
		attempts++
		if attempts < 2 {
			return stderrors.New("transient")
		}
		return nil
	})

	req.NoError(err)
	req.Equal(2, attempts)
}

func TestWithRetry_Exhausted_Is_Store_Unavailable(t *testing.T) {
	req := require.New(t)
	attempts := 0

	err := withRetry(context.Background(), slog.Default(), "op", 2, func() error {
		attempts++
		return stderrors.New("disk on fire")
	})

	req.ErrorIs(err, errors.ErrStoreUnavailable)
	req.Equal(3, attempts)
}

func TestWithRetry_Validation_Is_Not_Retried(t *testing.T) {
	req := require.New(t)
	attempts := 0

	err := withRetry(context.Background(), slog.Default(), "op", 5, func() error {
		attempts++
		return errors.ErrValidation
	})

	req.ErrorIs(err, errors.ErrValidation)
	req.Equal(1, attempts)
}

func TestWithRetry_Stops_On_Canceled_Context(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := withRetry(ctx, slog.Default(), "op", 5, func() error {
		return stderrors.New("transient")
	})

	req.ErrorIs(err, context.Canceled)
}
