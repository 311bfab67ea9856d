package internal

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy is the standard bounded exponential backoff applied to
// every transient-failure-prone operation in aimq: RPC calls against
// the queue backend, realtime subscription reconnects, and message
// finalization retries. It starts at 200ms and caps at 5s; it sets no
// limit on the number of attempts (Retry adds one).
func RetryPolicy() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}

// Retry runs op under RetryPolicy, stopping after maxTries attempts.
// op should wrap non-transient failures in backoff.Permanent so they
// are not retried.
func Retry[T any](ctx context.Context, maxTries int, op func() (T, error)) (T, error) {
	return backoff.Retry(ctx, op, backoff.WithBackOff(RetryPolicy()), backoff.WithMaxTries(uint(maxTries)))
}
