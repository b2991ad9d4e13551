package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	rdb, _ := newTestRedis(t)
	limiter := NewRateLimiter(rdb)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "ip:203.0.113.7", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := limiter.Allow(ctx, "ip:203.0.113.7", 3, time.Minute)
	assert.False(t, allowed)
	assert.Error(t, err)
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rdb, _ := newTestRedis(t)
	limiter := NewRateLimiter(rdb)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, "attempt:emlog_1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := limiter.Allow(ctx, "attempt:emlog_2", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimiterRemainingRequests(t *testing.T) {
	rdb, _ := newTestRedis(t)
	limiter := NewRateLimiter(rdb)
	ctx := context.Background()

	remaining, err := limiter.GetRemainingRequests(ctx, "ip:203.0.113.7", 5, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)

	_, err = limiter.Allow(ctx, "ip:203.0.113.7", 5, time.Minute)
	require.NoError(t, err)

	remaining, err = limiter.GetRemainingRequests(ctx, "ip:203.0.113.7", 5, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 4, remaining)
}
