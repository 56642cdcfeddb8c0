package services

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryOnConflict runs fn up to attempts times, retrying only when it fails
// with ConcurrentModification. fn must re-read whatever state it depends on.
func RetryOnConflict[T any](ctx context.Context, attempts int, fn func(ctx context.Context) (T, error)) (T, error) {
	if attempts < 1 {
		attempts = 1
	}
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 20 * time.Millisecond
	expBackoff.MaxInterval = 500 * time.Millisecond

	out, err := backoff.Retry(ctx, func() (T, error) {
		out, err := fn(ctx)
		if err != nil && !errors.Is(err, ErrConcurrentModification) {
			return out, backoff.Permanent(err)
		}
		return out, err
	}, backoff.WithBackOff(expBackoff), backoff.WithMaxTries(uint(attempts)))

	// Retry leaves the permanent wrapper in place when the last try fails.
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	return out, err
}
