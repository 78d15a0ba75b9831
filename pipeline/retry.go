package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/orgkb/orgkb"
)

// CallFunc is the signature for a retried external call.
type CallFunc func(ctx context.Context) error

// DefaultRetryDelays returns the backoff delays for model call retries:
// 1s, 2s, 4s.
func DefaultRetryDelays() []time.Duration {
	return []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
}

// CallWithRetry attempts an external call with exponential backoff.
// It retries up to 3 times (4 total attempts) with delays of 1s, 2s, 4s.
func CallWithRetry(ctx context.Context, fn CallFunc, logger *slog.Logger) error {
	return CallWithRetryDelays(ctx, fn, logger, DefaultRetryDelays())
}

// CallWithRetryDelays is like CallWithRetry but allows configurable
// delays. This is useful for testing without waiting for real delays.
//
// Only EUNAVAILABLE errors are retried: an invalid request does not
// become valid by repeating it.
func CallWithRetryDelays(ctx context.Context, fn CallFunc, logger *slog.Logger, delays []time.Duration) error {
	maxAttempts := len(delays) + 1 // 1 initial + N retries

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if orgkb.ErrorCode(err) != orgkb.EUNAVAILABLE {
			return err
		}
		if attempt >= maxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if logger != nil {
			logger.Warn("retrying model call", "attempt", attempt+2, "err", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delays[attempt]):
		}
	}

	return lastErr
}
