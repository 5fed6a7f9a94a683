package util_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/allaboutapps/integresql-client-go/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitWithTimeout(t *testing.T) {
	t.Parallel()

	errOperation := errors.New("operation failed")

	tests := []struct {
		name        string
		timeout     time.Duration
		sleep       time.Duration
		err         error
		expected    int
		expectedErr error
	}{
		{"completes", 200 * time.Millisecond, 10 * time.Millisecond, nil, 42, nil},
		{"fails", 200 * time.Millisecond, 0, errOperation, 0, errOperation},
		{"times out", 20 * time.Millisecond, time.Second, nil, 0, util.ErrTimeout},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			start := time.Now()
			res, err := util.WaitWithTimeout(context.Background(), tt.timeout, func(ctx context.Context) (int, error) {
				select {
				case <-time.After(tt.sleep):
				case <-ctx.Done():
					return 0, ctx.Err()
				}

				if tt.err != nil {
					return 0, tt.err
				}
				return 42, nil
			})

			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expected, res)
			assert.Less(t, time.Since(start), tt.timeout+100*time.Millisecond)
		})
	}
}

func TestWaitWithTimeoutParentCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	_, err := util.WaitWithTimeout(ctx, time.Second, func(ctx context.Context) (struct{}, error) {
		<-ctx.Done()
		return struct{}{}, ctx.Err()
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, util.ErrTimeout)
}
