package health

import (
	"context"
	"fmt"

	"github.com/dealcraft/replycache/cache"
	"github.com/dealcraft/replycache/resilience"
)

// StatsSource is anything that can report cache statistics.
// *cache.Store[T] satisfies it for every T.
type StatsSource interface {
	Stats() cache.Stats
}

// StoreCheckerConfig configures the cache store health checker.
type StoreCheckerConfig struct {
	// MinHitRate is the hit ratio below which a saturated store reports
	// degraded. Value should be between 0 and 1. Default: 0.2
	MinHitRate float64

	// MinLookups is the number of lookups needed before the hit rate is
	// judged at all. Default: 100
	MinLookups uint64
}

// StoreChecker reports on a cache store. It never reports unhealthy: a
// cache that serves nothing still lets every request through to the model.
// It reports degraded when the store is full and the hit rate is below
// MinHitRate, which means entries churn out before they are reused.
type StoreChecker struct {
	name   string
	source StatsSource
	config StoreCheckerConfig
}

// NewStoreChecker creates a checker named "cache.<store name>".
func NewStoreChecker(source StatsSource, config StoreCheckerConfig) *StoreChecker {
	if config.MinHitRate <= 0 || config.MinHitRate >= 1 {
		config.MinHitRate = 0.2
	}
	if config.MinLookups == 0 {
		config.MinLookups = 100
	}

	return &StoreChecker{
		name:   "cache." + source.Stats().Name,
		source: source,
		config: config,
	}
}

// Name returns the name of this checker.
func (s *StoreChecker) Name() string {
	return s.name
}

// Check reports the store's counters as details.
func (s *StoreChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	stats := s.source.Stats()
	details := map[string]any{
		"name":        stats.Name,
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"hit_rate":    stats.HitRate,
		"size":        stats.Size,
		"max_size":    stats.MaxSize,
		"evictions":   stats.Evictions,
		"expirations": stats.Expirations,
	}

	if stats.Saturated() && stats.Lookups() >= s.config.MinLookups && stats.Ratio() < s.config.MinHitRate {
		return Degraded(
			fmt.Sprintf("cache %s full with hit rate %s", stats.Name, stats.HitRate),
		).WithDetails(details)
	}

	return Healthy(
		fmt.Sprintf("cache %s hit rate %s, %d/%d entries", stats.Name, stats.HitRate, stats.Size, stats.MaxSize),
	).WithDetails(details)
}

// StateSource reports a circuit breaker state. *resilience.CircuitBreaker
// satisfies it.
type StateSource interface {
	State() resilience.State
}

// BreakerChecker reports on the circuit guarding the upstream model. An open
// circuit is degraded rather than unhealthy: cached replies are still served.
type BreakerChecker struct {
	name   string
	source StateSource
}

// NewBreakerChecker creates a checker for the named upstream.
func NewBreakerChecker(name string, source StateSource) *BreakerChecker {
	return &BreakerChecker{name: name, source: source}
}

// Name returns the name of this checker.
func (b *BreakerChecker) Name() string {
	return b.name
}

// Check maps the circuit state to a health status.
func (b *BreakerChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	state := b.source.State()
	details := map[string]any{"state": state.String()}

	switch state {
	case resilience.StateClosed:
		return Healthy("upstream circuit closed").WithDetails(details)
	case resilience.StateHalfOpen:
		return Degraded("upstream circuit probing").WithDetails(details)
	default:
		return Degraded("upstream circuit open; serving cached replies only").WithDetails(details)
	}
}
