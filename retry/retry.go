// Package retry bounds remote operations to a fixed number of attempts with
// a linear backoff between them. The curve is deliberately jitter-free: the
// wait after failed attempt n is n*BackoffBase, so the total backoff for a
// fully exhausted call is exactly sum(n*base) for n = 1..MaxAttempts-1.
package retry

import (
	"context"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 100 * time.Millisecond
)

// Policy is stateless across calls; attempt counting is scoped to a single
// Do invocation. The zero value (and nil) uses the defaults.
type Policy struct {
	// MaxAttempts is the total number of tries including the first.
	MaxAttempts int
	// BackoffBase is the linear step between attempts.
	BackoffBase time.Duration
}

// Attempts is the effective attempt count after defaulting.
func (p *Policy) Attempts() int {
	if p == nil || p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

func (p *Policy) backoffBase() time.Duration {
	if p == nil || p.BackoffBase <= 0 {
		return DefaultBackoffBase
	}
	return p.BackoffBase
}

// Delay returns the wait inserted after the given failed attempt (1-based):
// 100ms, 200ms, 300ms with the defaults.
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * p.backoffBase()
}

// Options tune Do. All fields are optional.
type Options struct {
	// ShouldRetry gates retries. Returning false stops immediately and the
	// error is handed back as-is. When nil, every error is retried.
	ShouldRetry func(err error) bool
	// OnRetry fires after a failed attempt, before the backoff wait.
	OnRetry func(attempt int, err error)
}

// Do runs fn up to pol.MaxAttempts times and returns the last error once
// attempts are exhausted. The backoff wait selects on ctx, so cancellation
// during a wait aborts the whole call right away with the context error,
// not with another attempt.
func Do(ctx context.Context, pol *Policy, fn func(context.Context) error, opts *Options) error {
	max := pol.Attempts()

	var lastErr error
	for attempt := 1; attempt <= max; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if opts != nil && opts.ShouldRetry != nil && !opts.ShouldRetry(lastErr) {
			return lastErr
		}
		if attempt == max {
			break
		}
		if opts != nil && opts.OnRetry != nil {
			opts.OnRetry(attempt, lastErr)
		}
		if err := Sleep(ctx, pol.Delay(attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

// Sleep waits for d or until ctx is done, whichever comes first, and returns
// the context error when interrupted.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
