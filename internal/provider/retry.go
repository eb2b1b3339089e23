package provider

import (
	"context"
	"time"

	"github.com/aristath/quoteflow/internal/errkind"
)

// withRetry calls fn at most cfg.Retries times in total (once when Retries
// <= 0), with exponential backoff seeded at cfg.RetryInterval. An error
// carrying an errkind other than errkind.ProviderTransient ends the loop at
// once (§7's "immediate fail on 4xx semantics"); transient errors and
// errors with no errkind are retried.
func withRetry(ctx context.Context, cfg RateLimitConfig, fn func() error) error {
	backoff := cfg.RetryInterval
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	var lastErr error
	attempts := cfg.Retries
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if kind, ok := errkind.Of(err); ok && kind != errkind.ProviderTransient {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return lastErr
}
