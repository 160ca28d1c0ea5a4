package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsFirstTry(t *testing.T) {
	clock := clockwork.NewFakeClock()

	calls := 0
	result := Do(context.Background(), clock, Policy{MaxAttempts: 3, InitialBackoff: time.Second},
		func(err error) bool { return err != nil },
		func(ctx context.Context) error {
			calls++
			return nil
		})

	assert.NoError(t, result)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesWithDoublingBackoff(t *testing.T) {
	clock := clockwork.NewFakeClock()
	transient := errors.New("transient")

	var backoffs []time.Duration
	calls := 0
	done := make(chan error, 1)

	go func() {
		done <- Do(context.Background(), clock, Policy{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			OnRetry:        func(attempt int, backoff time.Duration) { backoffs = append(backoffs, backoff) },
		},
			func(err error) bool { return err != nil },
			func(ctx context.Context) error {
				calls++
				return transient
			})
	}()

	clock.BlockUntil(1)
	clock.Advance(time.Second)
	clock.BlockUntil(1)
	clock.Advance(2 * time.Second)

	result := <-done
	assert.ErrorIs(t, result, transient)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, backoffs)
}

func TestDo_StopsWhenNotRetryable(t *testing.T) {
	clock := clockwork.NewFakeClock()
	permanent := errors.New("permanent")

	calls := 0
	result := Do(context.Background(), clock, Policy{MaxAttempts: 5, InitialBackoff: time.Second},
		func(err error) bool { return false },
		func(ctx context.Context) error {
			calls++
			return permanent
		})

	assert.ErrorIs(t, result, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelEndsBackoff(t *testing.T) {
	clock := clockwork.NewFakeClock()
	transient := errors.New("transient")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- Do(ctx, clock, Policy{MaxAttempts: 10, InitialBackoff: time.Minute},
			func(err error) bool { return err != nil },
			func(ctx context.Context) error { return transient })
	}()

	clock.BlockUntil(1)
	cancel()

	select {
	case result := <-done:
		require.ErrorIs(t, result, transient)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
}
