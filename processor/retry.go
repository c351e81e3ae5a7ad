package processor

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/context"
)

// Retry calls fn up to attempts times, doubling delay after each failure.
// It returns the last error, or the context error if ctx ends first.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = delay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = delay << uint(min(attempts, 16))
	b.MaxElapsedTime = 0

	return backoff.Retry(fn, backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx))
}
