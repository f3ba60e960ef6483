package resilience

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// Rate is the number of upstream calls allowed per second.
	// Default: 1
	Rate float64

	// Burst is the maximum burst size.
	// Default: 5
	Burst int

	// WaitOnLimit waits for a token instead of returning an error.
	// Default: false
	WaitOnLimit bool

	// MaxWait is the maximum time to wait for a token.
	// Default: 1 second
	MaxWait time.Duration
}

func (c RateLimiterConfig) withDefaults() RateLimiterConfig {
	if c.Rate <= 0 {
		c.Rate = 1
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	if c.MaxWait <= 0 {
		c.MaxWait = time.Second
	}
	return c
}

// RateLimiter is a token bucket in front of a rate-limited upstream.
// It is backed by golang.org/x/time/rate.
type RateLimiter struct {
	config  RateLimiterConfig
	limiter atomic.Pointer[rate.Limiter]
	now     func() time.Time
}

// NewRateLimiter creates a new rate limiter with a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config: config.withDefaults(),
		now:    time.Now,
	}
	rl.Reset()
	return rl
}

// Config returns the effective configuration.
func (rl *RateLimiter) Config() RateLimiterConfig {
	return rl.config
}

// Allow reports whether one call may proceed now, consuming a token if so.
func (rl *RateLimiter) Allow() bool {
	return rl.AllowN(1)
}

// AllowN reports whether n calls may proceed now.
func (rl *RateLimiter) AllowN(n int) bool {
	return rl.limiter.Load().AllowN(rl.now(), n)
}

// Wait blocks until a token is available, MaxWait elapses, or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.WaitN(ctx, 1)
}

// WaitN blocks until n tokens are available. It returns ErrRateLimitExceeded
// when the tokens cannot be had within MaxWait and ctx.Err() when the caller
// gave up first.
func (rl *RateLimiter) WaitN(ctx context.Context, n int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, rl.config.MaxWait)
	defer cancel()

	if err := rl.limiter.Load().WaitN(waitCtx, n); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// Either MaxWait elapsed, or rate refused up front because the
		// wait would overrun it.
		return ErrRateLimitExceeded
	}
	return nil
}

// Execute runs op if the rate limit allows it.
func (rl *RateLimiter) Execute(ctx context.Context, op func(context.Context) error) error {
	if rl.config.WaitOnLimit {
		if err := rl.Wait(ctx); err != nil {
			return err
		}
	} else if !rl.Allow() {
		return ErrRateLimitExceeded
	}

	return op(ctx)
}

// Tokens returns the number of tokens currently available.
func (rl *RateLimiter) Tokens() float64 {
	return rl.limiter.Load().TokensAt(rl.now())
}

// Reset refills the bucket to Burst.
func (rl *RateLimiter) Reset() {
	rl.limiter.Store(rate.NewLimiter(rate.Limit(rl.config.Rate), rl.config.Burst))
}
