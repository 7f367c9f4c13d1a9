package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// baseBackoff is the first retry delay; each later attempt doubles it.
const baseBackoff = 100 * time.Millisecond

// retryableError marks a failure worth another attempt (429, 5xx, transport errors).
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func retryable(err error) error {
	return &retryableError{err: err}
}

// withRetry runs call up to maxRetries+1 times with exponential backoff.
// Context expiry at any point is reported as ErrTimeout.
func withRetry(ctx context.Context, maxRetries int, logger *zap.Logger, call func() (*Response, error)) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := baseBackoff * time.Duration(1<<(attempt-1))
			logger.Debug("retrying completion",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
			}
		}

		resp, err := call()
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		}
		lastErr = err

		var re *retryableError
		if !errors.As(err, &re) {
			break
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrCompletionFailed, lastErr)
}
