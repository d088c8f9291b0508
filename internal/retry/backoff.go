package retry

import (
	"context"
	"time"
)

// ExponentialBackoff returns delay based on attempt number.
// The delay doubles with each attempt: base * 2^attempt
func ExponentialBackoff(attempt int, base time.Duration) time.Duration {
	return base * (1 << attempt)
}

// Do runs fn up to attempts times, sleeping with exponential backoff between
// failures. It returns nil on the first success, the last error once the
// attempts are spent, or the context error if ctx ends while waiting.
func Do(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		select {
		case <-time.After(ExponentialBackoff(attempt, base)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
