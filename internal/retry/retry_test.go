package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	for _, failures := range []int{0, 1, 3, 9} {
		t.Run(fmt.Sprintf("%d failures", failures), func(t *testing.T) {
			var notified []int
			out := Do(context.Background(), fastPolicy(10),
				func(_ context.Context, attempt int) (string, error) {
					if attempt <= failures {
						return "", errTransient
					}
					return "done", nil
				},
				nil,
				func(err error, attempt int, wait time.Duration) {
					assert.ErrorIs(t, err, errTransient)
					assert.Positive(t, wait)
					notified = append(notified, attempt)
				})

			require.NoError(t, out.Err)
			assert.Equal(t, "done", out.Value)
			assert.Equal(t, failures+1, out.Attempts)
			assert.Equal(t, failures, out.Retries())
			assert.Len(t, notified, failures)
		})
	}
}

func TestDoGivesUpAtBudget(t *testing.T) {
	calls := 0
	out := Do(context.Background(), fastPolicy(4),
		func(context.Context, int) (int, error) {
			calls++
			return 0, errTransient
		}, nil, nil)

	require.Error(t, out.Err)
	assert.ErrorIs(t, out.Err, errTransient)
	assert.Contains(t, out.Err.Error(), "giving up after 4 attempts")
	assert.Equal(t, 4, calls)
	assert.Equal(t, 4, out.Attempts)
	assert.Equal(t, 3, out.Retries())
}

func TestDoStopsOnPermanentError(t *testing.T) {
	errBad := errors.New("bad input")
	out := Do(context.Background(), fastPolicy(10),
		func(context.Context, int) (int, error) {
			return 0, errBad
		},
		func(err error) bool { return !errors.Is(err, errBad) },
		func(error, int, time.Duration) { t.Fatal("permanent errors must not be retried") })

	assert.ErrorIs(t, out.Err, errBad)
	assert.NotContains(t, out.Err.Error(), "giving up")
	assert.Equal(t, 1, out.Attempts)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	out := Do(ctx, Policy{MaxAttempts: 10, InitialBackoff: time.Hour},
		func(context.Context, int) (int, error) {
			cancel()
			return 0, errTransient
		}, nil, nil)

	assert.Error(t, out.Err)
	assert.Equal(t, 1, out.Attempts)
}

func TestDoDoesNotStartWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := Do(ctx, fastPolicy(3), func(context.Context, int) (int, error) {
		t.Fatal("operation must not run")
		return 0, nil
	}, nil, nil)

	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Zero(t, out.Attempts)
}

func TestDoSingleAttempt(t *testing.T) {
	out := Do(context.Background(), Policy{}, func(context.Context, int) (int, error) {
		return 0, errTransient
	}, nil, nil)

	assert.ErrorIs(t, out.Err, errTransient)
	assert.Equal(t, 1, out.Attempts)
}
