// Package resilience protects a rate-limited upstream model from the
// traffic that misses the reply cache.
//
// The patterns wrap the producer that runs on a cache miss, never the cache
// itself:
//
//   - Rate Limiter: a token bucket (golang.org/x/time/rate) matching the
//     upstream's request quota.
//
//   - Bulkhead: caps in-flight upstream calls (golang.org/x/sync/semaphore).
//
//   - Circuit Breaker: stops calling an upstream that keeps failing.
//
//   - Retry: re-runs transient failures with backoff. Context errors and
//     Permanent errors are never retried.
//
//   - Timeout: bounds each attempt.
//
// # Usage
//
//	exec := resilience.NewExecutorFromConfig(resilience.Config{
//	    RateLimit:      &resilience.RateLimiterConfig{Rate: 2, Burst: 4, WaitOnLimit: true},
//	    Bulkhead:       &resilience.BulkheadConfig{MaxConcurrent: 4},
//	    CircuitBreaker: &resilience.CircuitBreakerConfig{MaxFailures: 5},
//	    Retry:          &resilience.RetryConfig{MaxAttempts: 3, Jitter: true},
//	    Timeout:        20 * time.Second,
//	})
//
//	reply, err := resilience.Do(ctx, exec, func(ctx context.Context) (string, error) {
//	    return model.Reply(ctx, req)
//	})
package resilience
