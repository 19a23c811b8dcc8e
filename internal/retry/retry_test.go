package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"auction-market/internal/marketerrors"

	"github.com/stretchr/testify/require"
)

func TestDo(t *testing.T) {
	t.Parallel()

	conflict := fmt.Errorf("write: %w", marketerrors.ErrConflict)

	tests := []struct {
		name          string
		failures      int
		failWith      error
		attempts      int
		expectedCalls int
		expectedError error
	}{
		{name: "first_try", failures: 0, attempts: 3, expectedCalls: 1},
		{name: "succeeds_after_conflicts", failures: 2, failWith: conflict, attempts: 3, expectedCalls: 3},
		{name: "gives_up", failures: 10, failWith: conflict, attempts: 3, expectedCalls: 3, expectedError: marketerrors.ErrConflict},
		{name: "other_errors_not_retried", failures: 10, failWith: marketerrors.ErrBidTooLow, attempts: 3, expectedCalls: 1, expectedError: marketerrors.ErrBidTooLow},
		{name: "zero_attempts_runs_once", failures: 10, failWith: conflict, attempts: 0, expectedCalls: 1, expectedError: marketerrors.ErrConflict},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			calls, retries := 0, 0
			p := Policy{Attempts: tc.attempts, Start: time.Microsecond, Limit: time.Millisecond, Strategy: Linear}
			err := Do(context.Background(), p, func(int) { retries++ }, func(context.Context) error {
				calls++
				if calls <= tc.failures {
					return tc.failWith
				}
				return nil
			})

			require.Equal(t, tc.expectedCalls, calls)
			require.Equal(t, tc.expectedCalls-1, retries)
			if tc.expectedError != nil {
				require.True(t, errors.Is(err, tc.expectedError), "expected error: %v, got: %v", tc.expectedError, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{Attempts: 5, Start: time.Hour}, nil, func(context.Context) error {
		calls++
		cancel()
		return marketerrors.ErrConflict
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestPolicy_Pause(t *testing.T) {
	t.Parallel()

	p := Policy{Start: time.Millisecond, Limit: 5 * time.Millisecond, Strategy: Exponential}
	require.Equal(t, time.Millisecond, p.pause(0))
	require.Equal(t, 4*time.Millisecond, p.pause(2))
	require.Equal(t, 5*time.Millisecond, p.pause(3), "capped at limit")

	p.Strategy = Linear
	require.Equal(t, 3*time.Millisecond, p.pause(2))
}
