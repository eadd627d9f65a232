package matching

import (
	"context"
	"errors"
	"time"

	"github.com/david/grant-matcher/internal/ai"
)

// RetryPolicy bounds how often a rate-limited completion is attempted.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Retryable decides whether an error is worth another attempt. Nil
	// means retryAfterRateLimit.
	Retryable func(error) bool
}

// Delay is the wait before attempt n+1 after n failed attempts.
func (p RetryPolicy) Delay(failed int) time.Duration {
	if failed < 1 {
		return 0
	}
	return p.BaseDelay * time.Duration(1<<uint(failed-1))
}

// retryAfterRateLimit retries rate limits and per-attempt timeouts.
func retryAfterRateLimit(err error) bool {
	return ai.IsRateLimited(err) || errors.Is(err, context.DeadlineExceeded)
}

// Retry runs fn until it succeeds, fails with a non-retryable error, the
// attempts are spent or ctx ends. It returns the number of attempts made.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error)) (T, int, error) {
	var zero T
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = retryAfterRateLimit
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return zero, attempt - 1, errors.Join(lastErr, ctx.Err())
			case <-time.After(p.Delay(attempt - 1)):
			}
		}

		out, err := fn(ctx)
		if err == nil {
			return out, attempt, nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryable(err) {
			return zero, attempt, err
		}
		if attempt < maxAttempts {
			retriesTotal.Inc()
		}
	}
	return zero, maxAttempts, lastErr
}
