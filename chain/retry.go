package chain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"crosswatcher/config"
)

// TransientError wraps an RPC failure that persisted through all retry
// attempts. Callers treat it as a per-candidate skip, never as fatal.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, config.DefaultRetryTimes, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// withRetry runs fn with a per-call timeout, retrying a bounded number of
// times with doubling delay. Exhaustion surfaces as a TransientError.
func withRetry[T any](ctx context.Context, logger *slog.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := config.DefaultRetryInterval
	for attempt := 1; attempt <= config.DefaultRetryTimes; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, config.DefaultTimeout)
		result, err := fn(callCtx)
		cancel()
		if err == nil {
			return result, nil
		}
		lastErr = err
		logger.Warn("RPC call failed, retrying...", "op", op, "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			return zero, &TransientError{Op: op, Err: ctx.Err()}
		case <-time.After(delay):
		}
		delay *= 2
	}
	return zero, &TransientError{Op: op, Err: lastErr}
}
