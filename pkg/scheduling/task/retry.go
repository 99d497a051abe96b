package task

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryOptions configures WithRetry.
type RetryOptions struct {
	// MaxTries bounds the number of attempts, including the first. Zero uses 3.
	MaxTries uint

	// InitialInterval is the first backoff delay. Zero uses 100ms.
	InitialInterval time.Duration

	// MaxInterval caps a single backoff delay. Zero uses 5s.
	MaxInterval time.Duration

	// Retryable decides whether an error is worth another attempt.
	// Nil retries every error.
	Retryable func(error) bool
}

// WithRetry wraps t so that a failing action is retried with exponential
// backoff inside the same execution. The retries occupy the worker that
// runs the task; resubmitting failed tasks in a later cycle remains the
// batch producer's job.
func WithRetry(t Task, opts RetryOptions) Task {
	if opts.MaxTries == 0 {
		opts.MaxTries = 3
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 100 * time.Millisecond
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 5 * time.Second
	}

	action := t.Action
	return Task{
		ID: t.ID,
		Action: func(ctx context.Context) (any, error) {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = opts.InitialInterval
			b.MaxInterval = opts.MaxInterval

			return backoff.Retry(ctx, func() (any, error) {
				v, err := action(ctx)
				if err != nil && opts.Retryable != nil && !opts.Retryable(err) {
					return nil, backoff.Permanent(err)
				}
				return v, err
			}, backoff.WithBackOff(b), backoff.WithMaxTries(opts.MaxTries))
		},
	}
}
