package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBackoff(sleeps *[]time.Duration) Backoff {
	b := DefaultBackoff()
	b.Sleep = func(d time.Duration) { *sleeps = append(*sleeps, d) }
	return b
}

func TestRetry_SucceedsAfterRetryableFailures(t *testing.T) {
	var sleeps []time.Duration
	b := testBackoff(&sleeps)

	attempts := 0
	err := b.Retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return Retryable(errors.New("rate limited"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, sleeps)
}

func TestRetry_ExhaustsBudget(t *testing.T) {
	var sleeps []time.Duration
	b := testBackoff(&sleeps)

	attempts := 0
	err := b.Retry(context.Background(), func() error {
		attempts++
		return Retryable(errors.New("rate limited"))
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, attempts, "no attempts beyond the budget")
	assert.Len(t, sleeps, 2, "no sleep after the final attempt")
}

func TestRetry_NonRetryableFailsFast(t *testing.T) {
	var sleeps []time.Duration
	b := testBackoff(&sleeps)

	wantErr := errors.New("bad request")
	attempts := 0
	err := b.Retry(context.Background(), func() error {
		attempts++
		return wantErr
	})

	assert.ErrorIs(t, err, wantErr)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, sleeps)
}

func TestRetry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sleeps []time.Duration
	b := testBackoff(&sleeps)

	err := b.Retry(ctx, func() error {
		t.Fatal("op must not run after cancellation")
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}
