// Package health reports whether the reply caches and the model upstream
// behind them are doing their job.
//
// A Checker reports a Status: Healthy, Degraded, or Unhealthy. StoreChecker
// watches a cache.Store's statistics and BreakerChecker watches the circuit
// breaker in front of the model. Neither ever reports unhealthy, because the
// service keeps answering without a useful cache or with an open circuit.
//
// # Aggregating Health Checks
//
//	agg := health.NewAggregator()
//	agg.RegisterAll(svc.HealthCheckers()...)
//
//	results := agg.CheckAll(ctx)
//	overall := agg.OverallStatus(results)
//
// Checks run in parallel on an errgroup and share one deadline.
//
// # HTTP Endpoints
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg) // /healthz, /readyz, /health
package health
