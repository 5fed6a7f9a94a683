package util

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrRetriesExhausted = errors.New("retries exhausted")

// Retry calls f until it succeeds, at most attempts times, and sleeps between the calls.
// It gives up early on a canceled ctx or once retryable reports false for an error of f.
// A nil retryable retries every error. After the last attempt the returned error wraps
// ErrRetriesExhausted and the last error of f.
func Retry(ctx context.Context, attempts int, sleep time.Duration, retryable func(error) bool, f func(attempt int) error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = f(attempt)
		if err == nil {
			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if retryable != nil && !retryable(err) {
			return err
		}

		if attempt == attempts {
			break
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w after %d attempts, last error: %w", ErrRetriesExhausted, attempts, err)
}
