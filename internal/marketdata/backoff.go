package marketdata

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned when the upstream exhausted its retry
// budget or failed with a non-retryable error. A tick that sees this
// skips all price-dependent work and waits for the next schedule.
var ErrUnavailable = errors.New("market data unavailable")

// retryableError marks a failure worth another attempt (rate limiting,
// transient network errors). Everything else fails fast.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable wraps err so Backoff.Retry will attempt it again.
func Retryable(err error) error {
	return &retryableError{err: err}
}

// IsRetryable reports whether err was marked with Retryable.
func IsRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Backoff retries an operation with exponentially growing delays. The
// zero value is not useful; use DefaultBackoff or set all fields.
type Backoff struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64

	// Sleep is swapped out in tests. Nil means time.Sleep.
	Sleep func(time.Duration)
}

// DefaultBackoff matches the upstream rate-limit budget: three attempts
// total, delays of 2s then 4s between them.
func DefaultBackoff() Backoff {
	return Backoff{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Multiplier:  2,
	}
}

// Retry runs op up to MaxAttempts times, sleeping between attempts.
// Only errors marked Retryable are retried; the first non-retryable
// error is returned as-is. Exhausting the budget returns
// ErrUnavailable wrapping the last error.
func (b Backoff) Retry(ctx context.Context, op func() error) error {
	sleep := b.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	delay := b.BaseDelay
	var lastErr error

	for attempt := 0; attempt < b.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}

		lastErr = err
		if attempt < b.MaxAttempts-1 {
			sleep(delay)
			delay = time.Duration(float64(delay) * b.Multiplier)
		}
	}

	return errors.Join(ErrUnavailable, lastErr)
}
