package redis

import (
	"context"
	"errors"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAfterRepeatedFailures(t *testing.T) {
	hook := NewCircuitBreakerHook()
	failing := hook.ProcessHook(func(ctx context.Context, cmd goredis.Cmder) error {
		return errors.New("connection refused")
	})

	cmd := goredis.NewStatusCmd(context.Background())
	for i := 0; i < 10; i++ {
		_ = failing(context.Background(), cmd)
	}

	assert.Equal(t, gobreaker.StateOpen, hook.State())

	err := failing(context.Background(), cmd)
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestCircuitBreakerTreatsNilAsSuccess(t *testing.T) {
	hook := NewCircuitBreakerHook()
	missing := hook.ProcessHook(func(ctx context.Context, cmd goredis.Cmder) error {
		return goredis.Nil
	})

	cmd := goredis.NewStatusCmd(context.Background())
	for i := 0; i < 10; i++ {
		err := missing(context.Background(), cmd)
		assert.ErrorIs(t, err, goredis.Nil, "cache miss must surface to the caller")
	}

	assert.Equal(t, gobreaker.StateClosed, hook.State())
}

func TestCircuitBreakerStaysClosedOnSuccess(t *testing.T) {
	hook := NewCircuitBreakerHook()
	ok := hook.ProcessHook(func(ctx context.Context, cmd goredis.Cmder) error {
		return nil
	})

	cmd := goredis.NewStatusCmd(context.Background())
	for i := 0; i < 10; i++ {
		require.NoError(t, ok(context.Background(), cmd))
	}

	assert.Equal(t, gobreaker.StateClosed, hook.State())
}
