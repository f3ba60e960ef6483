package coach

import (
	"fmt"
	"time"

	"github.com/dealcraft/replycache/cache"
	"github.com/dealcraft/replycache/health"
	"github.com/dealcraft/replycache/resilience"
)

// Store names, also used as the cache.name telemetry attribute.
const (
	ChatStoreName     = "chat"
	AnalysisStoreName = "analysis"
)

// Config configures a Service.
type Config struct {
	// ModelName is reported on spans and log lines. Optional.
	ModelName string

	// Chat configures the chat reply store.
	Chat cache.Config

	// Analysis configures the analysis store. Analyses are costly and their
	// inputs rarely repeat quickly, so they are kept longer.
	Analysis cache.Config

	// Resilience configures the executor around model calls.
	Resilience resilience.Config

	// Health configures the store health checkers.
	Health health.StoreCheckerConfig
}

// DefaultConfig returns a configuration sized for a single training service
// in front of a rate-limited model.
func DefaultConfig() Config {
	return Config{
		Chat: cache.Config{
			MaxSize:    100,
			DefaultTTL: 10 * time.Minute,
			MaxTTL:     time.Hour,
		},
		Analysis: cache.Config{
			MaxSize:    50,
			DefaultTTL: 30 * time.Minute,
			MaxTTL:     2 * time.Hour,
		},
		Resilience: resilience.Config{
			RateLimit: &resilience.RateLimiterConfig{
				Rate:        2,
				Burst:       5,
				WaitOnLimit: true,
				MaxWait:     5 * time.Second,
			},
			Bulkhead: &resilience.BulkheadConfig{
				MaxConcurrent: 4,
				MaxWait:       10 * time.Second,
			},
			CircuitBreaker: &resilience.CircuitBreakerConfig{
				MaxFailures:  5,
				ResetTimeout: 30 * time.Second,
			},
			Retry: &resilience.RetryConfig{
				MaxAttempts:  3,
				InitialDelay: 500 * time.Millisecond,
				MaxDelay:     5 * time.Second,
				Multiplier:   2,
				Jitter:       true,
			},
			Timeout: 30 * time.Second,
		},
	}
}

// Validate checks both store configurations.
func (c Config) Validate() error {
	if err := c.Chat.Validate(); err != nil {
		return fmt.Errorf("coach: chat store: %w", err)
	}
	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("coach: analysis store: %w", err)
	}
	if c.Resilience.Timeout < 0 {
		return fmt.Errorf("coach: model timeout must not be negative, got %v", c.Resilience.Timeout)
	}
	return nil
}
