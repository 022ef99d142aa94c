// Package retry runs an operation under a bounded exponential backoff policy.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds one retried operation.
type Policy struct {
	// MaxAttempts is the total number of attempts, the first one included.
	MaxAttempts    int
	InitialBackoff time.Duration
	// MaxBackoff caps a single wait. Zero leaves the backoff library default.
	MaxBackoff time.Duration
}

// Outcome is the result of Do. Attempts counts every invocation of the
// operation, so Attempts-1 is the number of retries.
type Outcome[T any] struct {
	Value    T
	Attempts int
	Err      error
}

// Retries is the number of attempts after the first.
func (o Outcome[T]) Retries() int {
	if o.Attempts == 0 {
		return 0
	}
	return o.Attempts - 1
}

// Do invokes op until it succeeds, returns an error isRetryable rejects, the
// attempt budget is spent, or ctx is done. A nil isRetryable retries every
// error. notify, when non-nil, is called before each wait with the error of the
// failed attempt, its 1-based number and the upcoming delay.
func Do[T any](
	ctx context.Context,
	policy Policy,
	op func(ctx context.Context, attempt int) (T, error),
	isRetryable func(error) bool,
	notify func(err error, attempt int, wait time.Duration),
) Outcome[T] {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	expo := backoff.NewExponentialBackOff()
	expo.MaxElapsedTime = 0
	if policy.InitialBackoff > 0 {
		expo.InitialInterval = policy.InitialBackoff
	}
	if policy.MaxBackoff > 0 {
		expo.MaxInterval = policy.MaxBackoff
	}
	var b backoff.BackOff = backoff.WithMaxRetries(expo, uint64(policy.MaxAttempts-1))
	b = backoff.WithContext(b, ctx)

	var out Outcome[T]
	exhausted := false
	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		out.Attempts++
		v, err := op(ctx, out.Attempts)
		if err == nil {
			out.Value = v
			return nil
		}
		if ctx.Err() != nil || (isRetryable != nil && !isRetryable(err)) {
			return backoff.Permanent(err)
		}
		exhausted = out.Attempts >= policy.MaxAttempts
		return err
	}

	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, wait time.Duration) {
			notify(err, out.Attempts, wait)
		}
	}

	err := backoff.RetryNotify(operation, b, onRetry)
	switch {
	case err == nil:
	case exhausted && ctx.Err() == nil:
		out.Err = fmt.Errorf("giving up after %d attempts: %w", out.Attempts, err)
	default:
		out.Err = err
	}
	return out
}
