package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

var ErrAttemptsExhausted = errors.New("retry: attempts exhausted")

// Policy bounds a retry loop. MaxAttempts of 0 means unbounded.
type Policy struct {
	Backoff     BackoffConfig
	MaxAttempts int
	// Retryable decides whether err warrants another attempt. A nil Retryable
	// retries every error.
	Retryable func(err error) bool
}

// Do calls fn until it succeeds, returns a non-retryable error, the policy
// runs out of attempts, or ctx is done.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, attempt, err)
		}
		timer := time.NewTimer(p.Backoff.Delay(attempt, rng))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
