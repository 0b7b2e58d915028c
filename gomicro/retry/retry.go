// Package retry runs operations with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds how often and how fast an operation is retried.
type Policy struct {
	// MaxTries counts the first attempt; values below 1 mean a single attempt.
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Retryable reports whether an error is worth another attempt. Nil retries nothing.
	Retryable func(error) bool
}

// Do runs op until it succeeds, returns a non-retryable error, the policy runs out of
// attempts, or ctx is done.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	tries := p.MaxTries
	if tries < 1 {
		tries = 1
	}

	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}

	res, err := backoff.Retry(ctx, func() (T, error) {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(tries))

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	return res, err
}
