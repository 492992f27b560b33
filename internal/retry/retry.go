// Package retry runs an operation again after transient failures, waiting
// twice as long before each new attempt.
package retry

import (
	"context"
	"time"
)

// Policy controls Do. The zero value makes a single attempt.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// InitialDelay is the wait before the second attempt. Each later wait doubles.
	InitialDelay time.Duration
	// Retryable reports whether err is worth another attempt. Nil retries nothing.
	Retryable func(err error) bool
	// OnRetry, if set, is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Delay returns the wait after the given failed attempt (1-based):
// InitialDelay, 2*InitialDelay, 4*InitialDelay, ...
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.InitialDelay << (attempt - 1)
}

// Do calls fn until it succeeds, returns an error Retryable rejects, or
// MaxAttempts is reached. The last error is returned unchanged. Do reports
// how many attempts were made.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, int, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = timerSleep
	}

	var (
		result T
		err    error
	)
	for attempt := 1; ; attempt++ {
		result, err = fn(ctx)
		if err == nil {
			return result, attempt, nil
		}
		if attempt >= attempts || p.Retryable == nil || !p.Retryable(err) {
			return result, attempt, err
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return result, attempt, err
		}
	}
}

func timerSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
