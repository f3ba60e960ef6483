package resilience

import (
	"context"
	"time"
)

// Executor composes the resilience patterns around an upstream call.
// A nil *Executor runs operations directly.
type Executor struct {
	circuitBreaker *CircuitBreaker
	retry          *Retry
	rateLimiter    *RateLimiter
	bulkhead       *Bulkhead
	timeout        *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates a new resilience executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithCircuitBreaker adds a circuit breaker to the executor.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) {
		e.circuitBreaker = cb
	}
}

// WithRetry adds retry logic to the executor.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) {
		e.retry = r
	}
}

// WithRateLimiter adds rate limiting to the executor.
func WithRateLimiter(rl *RateLimiter) ExecutorOption {
	return func(e *Executor) {
		e.rateLimiter = rl
	}
}

// WithBulkhead adds bulkhead isolation to the executor.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) {
		e.bulkhead = b
	}
}

// WithTimeout bounds each attempt with timeout.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = NewTimeout(TimeoutConfig{Timeout: timeout})
	}
}

// Config selects which patterns an Executor built by NewExecutorFromConfig
// applies. A nil section, or a zero Timeout, leaves that pattern out.
type Config struct {
	RateLimit      *RateLimiterConfig
	Bulkhead       *BulkheadConfig
	CircuitBreaker *CircuitBreakerConfig
	Retry          *RetryConfig
	Timeout        time.Duration
}

// NewExecutorFromConfig builds an Executor from cfg.
func NewExecutorFromConfig(cfg Config) *Executor {
	var opts []ExecutorOption
	if cfg.RateLimit != nil {
		opts = append(opts, WithRateLimiter(NewRateLimiter(*cfg.RateLimit)))
	}
	if cfg.Bulkhead != nil {
		opts = append(opts, WithBulkhead(NewBulkhead(*cfg.Bulkhead)))
	}
	if cfg.CircuitBreaker != nil {
		opts = append(opts, WithCircuitBreaker(NewCircuitBreaker(*cfg.CircuitBreaker)))
	}
	if cfg.Retry != nil {
		opts = append(opts, WithRetry(NewRetry(*cfg.Retry)))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(cfg.Timeout))
	}
	return NewExecutor(opts...)
}

// CircuitBreaker returns the configured breaker, or nil.
func (e *Executor) CircuitBreaker() *CircuitBreaker {
	if e == nil {
		return nil
	}
	return e.circuitBreaker
}

// Execute runs op through all configured patterns.
//
// The execution order is:
// 1. Rate Limiter - one token per logical call, retries included
// 2. Bulkhead - one slot held across all attempts
// 3. Circuit Breaker - sees the outcome after retries
// 4. Retry
// 5. Timeout - bounds each attempt
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	if e == nil {
		return op(ctx)
	}

	execute := op

	if e.timeout != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.timeout.Execute(ctx, inner)
		}
	}

	if e.retry != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.retry.Execute(ctx, inner)
		}
	}

	if e.circuitBreaker != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.circuitBreaker.Execute(ctx, inner)
		}
	}

	if e.bulkhead != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.bulkhead.Execute(ctx, inner)
		}
	}

	if e.rateLimiter != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.rateLimiter.Execute(ctx, inner)
		}
	}

	return execute(ctx)
}

// Do runs fn through e and returns its value. The value of a failed call is
// the zero value.
func Do[T any](ctx context.Context, e *Executor, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := e.Execute(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
