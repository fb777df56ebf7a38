package relay

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy wraps an operation with retries.
type RetryPolicy interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// NoRetry runs the operation exactly once.
type NoRetry struct{}

func (NoRetry) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// SimpleRetry retries an operation using exponential backoff.
//
// Retryable, when set, limits retries to the errors it accepts; other errors
// are returned immediately. OnRetry is called before each wait.
type SimpleRetry struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Jitter    bool

	Retryable func(err error) bool
	OnRetry   func(attempt int, delay time.Duration, err error)
}

func (r SimpleRetry) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	attempts := r.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	base := r.BaseDelay
	if base < 0 {
		base = 0
	}
	max := r.MaxDelay
	if max < base {
		max = base
	}

	var last error
	delay := base

	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		last = fn(ctx)
		if last == nil {
			return nil
		}
		if i == attempts || (r.Retryable != nil && !r.Retryable(last)) {
			break
		}

		d := delay
		if r.Jitter && d > 0 {
			d = time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
		}
		if d > max {
			d = max
		}
		if r.OnRetry != nil {
			r.OnRetry(i, d, last)
		}

		if d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		delay *= 2
		if delay > max {
			delay = max
		}
	}

	return last
}
