package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiterZeroMeansUnlimited(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 10; i++ {
		require.NoError(t, rl.Acquire(ctx))
	}
}

func TestRateLimiterBlocksBeyondBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{PerMinute: 2, PerHour: 1000, PerDay: 10000})
	ctx := context.Background()
	require.NoError(t, rl.Acquire(ctx))
	require.NoError(t, rl.Acquire(ctx))

	ctx2, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := rl.Acquire(ctx2)
	assert.Error(t, err)
}

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	assert.Equal(t, 30, cfg.PerMinute)
	assert.Equal(t, 500, cfg.PerHour)
	assert.Equal(t, 5000, cfg.PerDay)
	assert.Equal(t, 3, cfg.Retries)
	assert.Equal(t, 2*time.Second, cfg.RetryInterval)
}
