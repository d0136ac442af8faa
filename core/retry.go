package core

import (
	"context"
	"time"
)

// RetryPolicy is a fixed-delay bound: MaxAttempts calls with Delay between
// consecutive calls. There is no backoff and no jitter.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

func IdentityResolutionPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: defaultResolutionAttempts, Delay: defaultResolutionDelay}
}

func AccessRequestRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: defaultAccessRequestAttempts, Delay: defaultAccessRequestDelay}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

type SleeperFunc func(ctx context.Context, delay time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, delay time.Duration) error {
	if f == nil {
		return nil
	}
	return f(ctx, delay)
}

// TimerSleeper waits on a timer and returns early with ctx.Err() on
// cancellation.
type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, delay time.Duration) error {
	return waitWithContext(ctx, delay)
}

type RetryOption func(*retryOptions)

type retryOptions struct {
	retryIf func(error) bool
	onRetry func(attempt int, delay time.Duration, err error)
}

// RetryIf restricts retries to errors accepted by match. Other errors are
// returned immediately.
func RetryIf(match func(error) bool) RetryOption {
	return func(o *retryOptions) {
		o.retryIf = match
	}
}

// OnRetry is called before each wait with the attempt that just failed.
func OnRetry(fn func(attempt int, delay time.Duration, err error)) RetryOption {
	return func(o *retryOptions) {
		o.onRetry = fn
	}
}

// Retry calls fn until it succeeds, returns a non-retryable error, or the
// policy is exhausted. It reports the number of calls made.
func Retry[T any](
	ctx context.Context,
	policy RetryPolicy,
	sleeper Sleeper,
	fn func(ctx context.Context, attempt int) (T, error),
	options ...RetryOption,
) (T, int, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	if sleeper == nil {
		sleeper = TimerSleeper{}
	}
	cfg := retryOptions{}
	for _, option := range options {
		if option != nil {
			option(&cfg)
		}
	}

	maxAttempts := policy.attempts()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := fn(ctx, attempt)
		if err == nil {
			return result, attempt, nil
		}
		lastErr = err
		if cfg.retryIf != nil && !cfg.retryIf(err) {
			return zero, attempt, err
		}
		if attempt == maxAttempts {
			break
		}
		if cfg.onRetry != nil {
			cfg.onRetry(attempt, policy.Delay, err)
		}
		if waitErr := sleeper.Sleep(ctx, policy.Delay); waitErr != nil {
			return zero, attempt, waitErr
		}
	}
	return zero, maxAttempts, lastErr
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
