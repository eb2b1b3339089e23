package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/quoteflow/internal/errkind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetrySucceedsWithoutRetrying(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), RateLimitConfig{Retries: 3, RetryInterval: time.Millisecond}, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), RateLimitConfig{Retries: 3, RetryInterval: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return errkind.New(errkind.ProviderTransient, "test", errors.New("boom"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryFailsImmediatelyOnNonTransient(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), RateLimitConfig{Retries: 3, RetryInterval: time.Millisecond}, func() error {
		calls++
		return errkind.New(errkind.PayloadInvalid, "test", errors.New("bad row"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), RateLimitConfig{Retries: 2, RetryInterval: time.Millisecond}, func() error {
		calls++
		return errkind.New(errkind.ProviderTransient, "test", errors.New("still down"))
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestWithRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := withRetry(ctx, RateLimitConfig{Retries: 5, RetryInterval: 50 * time.Millisecond}, func() error {
		calls++
		if calls == 1 {
			cancel()
		}
		return errkind.New(errkind.ProviderTransient, "test", errors.New("down"))
	})
	require.Error(t, err)
	assert.Equal(t, context.Canceled, err)
}
