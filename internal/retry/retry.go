// Package retry runs fallible operations with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 500 * time.Millisecond
)

// Classifier reports whether an error is worth another attempt.
type Classifier func(error) bool

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy holds retry settings shared by many call sites.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Retryable    Classifier
	Sleep        SleepFunc
	OnRetry      func(attempt int, delay time.Duration, err error)
}

// Option adjusts a Policy for a single call.
type Option func(*Policy)

// WithMaxAttempts sets the total number of attempts, including the first.
func WithMaxAttempts(n int) Option {
	return func(p *Policy) { p.MaxAttempts = n }
}

// WithInitialDelay sets the wait before the second attempt.
func WithInitialDelay(d time.Duration) Option {
	return func(p *Policy) { p.InitialDelay = d }
}

// WithClassifier stops retrying as soon as fn returns false.
func WithClassifier(fn Classifier) Option {
	return func(p *Policy) { p.Retryable = fn }
}

// WithSleep replaces the timer used between attempts.
func WithSleep(fn SleepFunc) Option {
	return func(p *Policy) { p.Sleep = fn }
}

// WithOnRetry registers a hook called before each wait.
func WithOnRetry(fn func(attempt int, delay time.Duration, err error)) Option {
	return func(p *Policy) { p.OnRetry = fn }
}

// DefaultPolicy returns the stock settings.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, InitialDelay: DefaultInitialDelay}
}

// Do runs op with p's settings; opts override p for this call only.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error), opts ...Option) (T, error) {
	for _, opt := range opts {
		opt(&p)
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		val, err := op(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err
		if attempt == attempts-1 || !retryable(err) || ctx.Err() != nil {
			break
		}
		delay := Backoff(p.InitialDelay, attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			break
		}
	}
	return zero, lastErr
}

// Run is Do for operations without a result value.
func Run(ctx context.Context, p Policy, op func(context.Context) error, opts ...Option) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, opts...)
	return err
}

// Backoff returns initial * 2^attempt, where attempt is zero-indexed.
// Non-positive initial delays yield zero.
func Backoff(initial time.Duration, attempt int) time.Duration {
	if initial <= 0 || attempt < 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}
	return initial << uint(attempt)
}

// Sleep blocks for d unless ctx ends first.
func Sleep(ctx context.Context, d time.Duration) error {
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

// permanent marks an error that must not be retried.
type permanent struct{ err error }

func (p *permanent) Error() string { return p.err.Error() }
func (p *permanent) Unwrap() error { return p.err }

// Permanent wraps err so IsRetryable rejects it. errors.Is and errors.As
// still reach the cause.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanent{err: err}
}

// Temporary is implemented by errors that know whether they are transient,
// such as provider HTTP status errors.
type Temporary interface {
	Temporary() bool
}

// IsRetryable is the default classifier: cancellation, Permanent-wrapped
// errors and errors reporting Temporary() == false are final. Deadline errors
// from per-request client timeouts stay retryable; Do stops on its own once
// the caller's context is done.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var p *permanent
	if errors.As(err, &p) {
		return false
	}
	var t Temporary
	if errors.As(err, &t) {
		return t.Temporary()
	}
	return true
}
