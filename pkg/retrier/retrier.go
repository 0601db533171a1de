// Package retrier runs calls with exponential backoff and jitter.
package retrier

import (
	"context"
	"math/rand"
	"time"
)

// Retrier retries a call up to maxRetries times, doubling the wait each time.
type Retrier struct {
	initial    time.Duration
	ceiling    time.Duration
	maxRetries int
	jitter     float64
	retryIf    func(error) bool
	onRetry    func(attempt int, err error, wait time.Duration)
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithInitialInterval sets the wait before the first retry.
func WithInitialInterval(d time.Duration) Option {
	return func(r *Retrier) { r.initial = d }
}

// WithMaxInterval caps the wait between retries.
func WithMaxInterval(d time.Duration) Option {
	return func(r *Retrier) { r.ceiling = d }
}

// WithMaxRetries sets how many retries follow the first attempt.
func WithMaxRetries(n int) Option {
	return func(r *Retrier) { r.maxRetries = n }
}

// WithRetryIf retries only errors for which fn returns true.
// Other errors are returned immediately.
func WithRetryIf(fn func(error) bool) Option {
	return func(r *Retrier) { r.retryIf = fn }
}

// WithOnRetry registers a hook called before each wait.
func WithOnRetry(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(r *Retrier) { r.onRetry = fn }
}

// New creates a Retrier: 5 retries starting at 1s, capped at 30s, 10% jitter.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		initial:    time.Second,
		ceiling:    30 * time.Second,
		maxRetries: 5,
		jitter:     0.1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Backoff returns the wait before retry number attempt (1-based), without jitter.
func (r *Retrier) Backoff(attempt int) time.Duration {
	wait := r.initial
	for i := 1; i < attempt && wait < r.ceiling; i++ {
		wait *= 2
	}
	return min(wait, r.ceiling)
}

// Do calls fn until it succeeds, returns a non-retryable error, runs out of
// retries or ctx is done.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	for attempt := 1; err != nil && attempt <= r.maxRetries; attempt++ {
		if r.retryIf != nil && !r.retryIf(err) {
			return err
		}

		wait := r.withJitter(r.Backoff(attempt))
		if r.onRetry != nil {
			r.onRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		err = fn(ctx)
	}
	return err
}

func (r *Retrier) withJitter(d time.Duration) time.Duration {
	delta := (rand.Float64()*2 - 1) * r.jitter * float64(d)
	return max(time.Duration(float64(d)+delta), 0)
}

// DoWithData is Do for calls that return a value.
func DoWithData[T any](r *Retrier, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = fn(ctx)
		return callErr
	})
	return result, err
}
