package provider

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig parameterizes one adapter's RateLimiter (§4.3), named
// and shaped after the original source_factory.py's per-provider
// RateLimitConfig (max_requests_per_{minute,hour,day}, retry_times,
// retry_interval).
type RateLimitConfig struct {
	PerMinute     int
	PerHour       int
	PerDay        int
	Retries       int
	RetryInterval time.Duration
}

// DefaultRateLimitConfig mirrors source_factory.py's fallback defaults
// (30/req-min, 500/req-hour, 5000/req-day, 3 retries, 2s interval).
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{PerMinute: 30, PerHour: 500, PerDay: 5000, Retries: 3, RetryInterval: 2 * time.Second}
}

// RateLimiter stacks three token buckets (per-minute/hour/day), the
// single source of pacing for an adapter (§5 Parallelism bounds): Acquire
// blocks until all three would allow another request.
type RateLimiter struct {
	minute *rate.Limiter
	hour   *rate.Limiter
	day    *rate.Limiter
}

// NewRateLimiter builds a RateLimiter from cfg. A zero limit in any field
// is treated as "no limit" for that window.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		minute: bucket(cfg.PerMinute, time.Minute),
		hour:   bucket(cfg.PerHour, time.Hour),
		day:    bucket(cfg.PerDay, 24*time.Hour),
	}
}

func bucket(n int, window time.Duration) *rate.Limiter {
	if n <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	// Evenly spread n permits across window, with a burst of n so an
	// idle adapter can still open with a short sprint.
	return rate.NewLimiter(rate.Every(window/time.Duration(n)), n)
}

// Acquire blocks until all three windows admit one more request, or ctx is
// cancelled.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	if err := rl.minute.Wait(ctx); err != nil {
		return err
	}
	if err := rl.hour.Wait(ctx); err != nil {
		return err
	}
	return rl.day.Wait(ctx)
}
