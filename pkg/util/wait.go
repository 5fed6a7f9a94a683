package util

import (
	"context"
	"errors"
	"time"
)

var ErrTimeout = errors.New("timeout while waiting for operation to complete")

// WaitWithTimeout runs operation and waits at most timeout for its result.
// operation receives a context which is canceled once WaitWithTimeout returns, it should stop then.
// Returns ErrTimeout if the deadline is hit, or the error of ctx if ctx is canceled first.
func WaitWithTimeout[T any](ctx context.Context, timeout time.Duration, operation func(context.Context) (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		value, err := operation(cctx)
		done <- result{value: value, err: err}
	}()

	select {
	case res := <-done:
		// operations giving up on their canceled context are reported as timed out
		if res.err == nil || cctx.Err() == nil {
			return res.value, res.err
		}
	case <-cctx.Done():
	}

	var empty T
	if err := ctx.Err(); err != nil {
		return empty, err
	}

	return empty, ErrTimeout
}
