package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dealcraft/replycache/resilience"
)

func ExampleCircuitBreaker_State() {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Minute,
	})

	ctx := context.Background()
	fmt.Println("Initial state:", cb.State())

	unavailable := errors.New("model unavailable")
	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func(ctx context.Context) error {
			return unavailable
		})
	}
	fmt.Println("After failures:", cb.State())

	err := cb.Execute(ctx, func(ctx context.Context) error { return nil })
	fmt.Println("Refused:", errors.Is(err, resilience.ErrCircuitOpen))

	cb.Reset()
	fmt.Println("After reset:", cb.State())
	// Output:
	// Initial state: closed
	// After failures: open
	// Refused: true
	// After reset: closed
}

func ExampleNewCircuitBreaker_withStateChange() {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Minute,
		OnStateChange: func(from, to resilience.State) {
			fmt.Printf("Circuit changed: %s -> %s\n", from, to)
		},
	})

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("failure")
	})
	// Output:
	// Circuit changed: closed -> open
}

func ExampleNewRetry() {
	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			fmt.Printf("Retry %d after: %v\n", attempt, err)
		},
	})

	attempts := 0
	err := retry.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("429 too many requests")
		}
		return nil
	})

	fmt.Println("Error:", err)
	// Output:
	// Retry 1 after: 429 too many requests
	// Retry 2 after: 429 too many requests
	// Error: <nil>
}

func ExamplePermanent() {
	retry := resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond})

	attempts := 0
	err := retry.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return resilience.Permanent(errors.New("400 prompt too long"))
	})

	fmt.Println(attempts, err)
	// Output:
	// 1 400 prompt too long
}

func ExampleRateLimiter_Execute() {
	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		Rate:  1,
		Burst: 2,
	})

	for i := 0; i < 3; i++ {
		err := rl.Execute(context.Background(), func(ctx context.Context) error {
			return nil
		})
		fmt.Printf("Call %d rate limited: %v\n", i+1, errors.Is(err, resilience.ErrRateLimitExceeded))
	}
	// Output:
	// Call 1 rate limited: false
	// Call 2 rate limited: false
	// Call 3 rate limited: true
}

func ExampleBulkhead_Metrics() {
	bh := resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 2})

	ctx := context.Background()
	_ = bh.Acquire(ctx)

	m := bh.Metrics()
	fmt.Printf("Active: %d, Available: %d\n", m.Active, m.Available)

	bh.Release()
	// Output:
	// Active: 1, Available: 1
}

func ExampleExecuteWithTimeout() {
	err := resilience.ExecuteWithTimeout(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	fmt.Println("Timed out:", errors.Is(err, resilience.ErrTimeout))
	// Output:
	// Timed out: true
}

func ExampleDo() {
	exec := resilience.NewExecutorFromConfig(resilience.Config{
		RateLimit:      &resilience.RateLimiterConfig{Rate: 10, Burst: 5},
		Bulkhead:       &resilience.BulkheadConfig{MaxConcurrent: 2},
		CircuitBreaker: &resilience.CircuitBreakerConfig{MaxFailures: 5},
		Retry:          &resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond},
		Timeout:        time.Second,
	})

	calls := 0
	reply, err := resilience.Do(context.Background(), exec, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("503")
		}
		return "What volume are you committing to?", nil
	})

	fmt.Println(reply, err, calls)
	// Output:
	// What volume are you committing to? <nil> 2
}
