// Package retry runs an operation again with a linear backoff until it succeeds, the attempts run out,
// or the context is done.
package retry

import (
	"context"
	"time"

	"github.com/bsv-blockchain/utxo-ttl/ulogger"
)

type SetOptions struct {
	RetryCount          int
	BackoffMultiplier   int
	BackoffDurationType time.Duration
	Message             string
	RetryIf             func(error) bool
}

type Options func(s *SetOptions)

func WithRetryCount(count int) Options {
	return func(s *SetOptions) {
		s.RetryCount = count
	}
}

func WithBackoffMultiplier(multiplier int) Options {
	return func(s *SetOptions) {
		s.BackoffMultiplier = multiplier
	}
}

func WithBackoffDurationType(d time.Duration) Options {
	return func(s *SetOptions) {
		s.BackoffDurationType = d
	}
}

func WithMessage(message string) Options {
	return func(s *SetOptions) {
		s.Message = message
	}
}

// WithRetryIf stops retrying as soon as retryable returns false for an error.
func WithRetryIf(retryable func(error) bool) Options {
	return func(s *SetOptions) {
		s.RetryIf = retryable
	}
}

// Retry calls f up to RetryCount times and returns the first success or the last error.
func Retry[T any](ctx context.Context, logger ulogger.Logger, f func() (T, error), opts ...Options) (T, error) {
	o := &SetOptions{
		RetryCount:          3,
		BackoffMultiplier:   2,
		BackoffDurationType: time.Second,
		Message:             "retrying",
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.RetryCount < 1 {
		o.RetryCount = 1
	}

	var (
		result T
		err    error
	)

	for i := 0; i < o.RetryCount; i++ {
		result, err = f()
		if err == nil {
			return result, nil
		}

		if o.RetryIf != nil && !o.RetryIf(err) {
			return result, err
		}

		if i == o.RetryCount-1 {
			break
		}

		logger.Warnf("%s (attempt %d of %d): %v", o.Message, i+1, o.RetryCount, err)

		if sleepErr := BackoffAndSleep(ctx, i, o.BackoffMultiplier, o.BackoffDurationType); sleepErr != nil {
			return result, sleepErr
		}
	}

	return result, err
}
