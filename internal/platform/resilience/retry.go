package resilience

import (
	"context"
	"time"
)

// Retry calls fn until it succeeds, the policy is exhausted, ctx ends or
// retryable rejects the error. A nil retryable retries every error.
// The returned error is the last one fn produced, or ctx.Err() when cancelled.
func Retry(ctx context.Context, policy RetryPolicy, retryable func(error) bool, fn func(ctx context.Context, attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt <= max(policy.Retries, 0); attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, policy.Delay(attempt)); err != nil {
				return err
			}
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
