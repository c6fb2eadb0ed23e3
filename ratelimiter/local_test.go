package ratelimiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_TryConsume(t *testing.T) {
	rl := New(100, 10)

	// Should be able to proceed
	assert.True(t, rl.TryConsume(10), "should be able to proceed with valid request")

	// Test running out of tokens
	smallTokenRL := New(10, 100)
	assert.True(t, smallTokenRL.TryConsume(10), "should be able to consume exactly available tokens")
	assert.False(t, smallTokenRL.TryConsume(1), "should not proceed when tokens exhausted")

	// Test running out of requests
	smallReqRL := New(100, 1)
	assert.True(t, smallReqRL.TryConsume(1), "should be able to proceed with 1st request")
	assert.False(t, smallReqRL.TryConsume(1), "should not proceed when requests exhausted")
}

func TestRateLimiter_FailedConsumeKeepsBudget(t *testing.T) {
	// Token budget fails, so the request budget must not be charged.
	rl := New(10, 1)
	assert.False(t, rl.TryConsume(11))
	assert.True(t, rl.TryConsume(10))
}

func TestRateLimiter_Unlimited(t *testing.T) {
	rl := New(0, 0)
	for i := 0; i < 1000; i++ {
		require.True(t, rl.TryConsume(1_000_000))
	}
	assert.Zero(t, rl.TimeUntilAvailable(1_000_000))
}

func TestRateLimiter_TimeUntilAvailable(t *testing.T) {
	rl := New(60, 60) // 1 token per second

	require.True(t, rl.TryConsume(59))

	// We need 1 more token than is left. Refill rate is 1/sec.
	wait := rl.TimeUntilAvailable(2)
	assert.Greater(t, wait, 500*time.Millisecond)
	assert.LessOrEqual(t, wait, 1100*time.Millisecond)

	assert.Zero(t, rl.TimeUntilAvailable(1))
	assert.False(t, rl.TryConsume(2))
	assert.True(t, rl.TryConsume(1))
}

func TestRateLimiter_WaitAndConsume(t *testing.T) {
	t.Run("immediate", func(t *testing.T) {
		rl := New(100, 10)
		require.NoError(t, rl.WaitAndConsume(context.Background(), 50, time.Second))
	})

	t.Run("exceeds max wait", func(t *testing.T) {
		rl := New(60, 60)
		require.True(t, rl.TryConsume(60))

		err := rl.WaitAndConsume(context.Background(), 30, 10*time.Millisecond)
		require.Error(t, err)
	})

	t.Run("exceeds capacity", func(t *testing.T) {
		rl := New(10, 10)
		err := rl.WaitAndConsume(context.Background(), 11, 0)
		assert.True(t, errors.Is(err, ErrExceedsCapacity))
	})

	t.Run("context cancelled", func(t *testing.T) {
		rl := New(60, 60)
		require.True(t, rl.TryConsume(60))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := rl.WaitAndConsume(ctx, 30, 0)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("waits for refill", func(t *testing.T) {
		rl := New(6000, 6000) // 100 per second
		require.True(t, rl.TryConsume(6000))

		start := time.Now()
		require.NoError(t, rl.WaitAndConsume(context.Background(), 5, time.Second))
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})
}
