package health

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds one CheckAll run when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// Timeout is the deadline shared by all checks of one run.
	// Default: 10 seconds
	Timeout time.Duration

	// Parallel runs checks concurrently when true.
	// Default: true
	Parallel bool

	// MaxConcurrent caps parallel checks. Zero means no cap.
	MaxConcurrent int
}

type registration struct {
	name    string
	checker Checker
}

// Aggregator runs a set of named checkers and folds their results into one
// status. Checkers run in registration order when sequential.
type Aggregator struct {
	config AggregatorConfig

	mu      sync.RWMutex
	entries []registration
}

// NewAggregator creates a health aggregator. Without a config it runs
// checks in parallel with DefaultTimeout.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	cfg := AggregatorConfig{Timeout: DefaultTimeout, Parallel: true}
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Aggregator{config: cfg}
}

// Register adds checker under name, replacing any checker already there.
// A replaced checker keeps its position.
func (a *Aggregator) Register(name string, checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.entries {
		if a.entries[i].name == name {
			a.entries[i].checker = checker
			return
		}
	}
	a.entries = append(a.entries, registration{name: name, checker: checker})
}

// RegisterAll adds every checker under its own name.
func (a *Aggregator) RegisterAll(checkers ...Checker) {
	for _, c := range checkers {
		a.Register(c.Name(), c)
	}
}

// Unregister removes the named checker. No-op if absent.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries = slices.DeleteFunc(a.entries, func(r registration) bool {
		return r.name == name
	})
}

// CheckerNames returns the registered names in registration order.
func (a *Aggregator) CheckerNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, len(a.entries))
	for i, r := range a.entries {
		names[i] = r.name
	}
	return names
}

// Check runs a single named health check.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	i := slices.IndexFunc(a.entries, func(r registration) bool { return r.name == name })
	var checker Checker
	if i >= 0 {
		checker = a.entries[i].checker
	}
	a.mu.RUnlock()

	if checker == nil {
		return Result{}, ErrCheckerNotFound
	}
	return a.runCheck(ctx, checker), nil
}

// CheckAll runs every registered check under one shared deadline and
// returns the results by name.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Result {
	a.mu.RLock()
	entries := slices.Clone(a.entries)
	a.mu.RUnlock()

	results := make(map[string]Result, len(entries))
	if len(entries) == 0 {
		return results
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	if !a.config.Parallel {
		for _, r := range entries {
			results[r.name] = a.runCheck(ctx, r.checker)
		}
		return results
	}

	// Failures travel in Result, never through the group, so one failing
	// check does not cancel the others.
	var g errgroup.Group
	if a.config.MaxConcurrent > 0 {
		g.SetLimit(a.config.MaxConcurrent)
	}
	out := make([]Result, len(entries))
	for i, r := range entries {
		g.Go(func() error {
			out[i] = a.runCheck(ctx, r.checker)
			return nil
		})
	}
	_ = g.Wait()

	for i, r := range entries {
		results[r.name] = out[i]
	}
	return results
}

// OverallStatus returns the most severe status among results, or healthy
// when there are none.
func (a *Aggregator) OverallStatus(results map[string]Result) Status {
	overall := StatusHealthy
	for _, result := range results {
		overall = overall.Worse(result.Status)
	}
	return overall
}

// runCheck runs checker, abandoning it if it outlives ctx.
func (a *Aggregator) runCheck(ctx context.Context, checker Checker) Result {
	start := time.Now()
	done := make(chan Result, 1)

	go func() {
		result := checker.Check(ctx)
		if result.Timestamp.IsZero() {
			result.Timestamp = start
		}
		done <- result.WithDuration(time.Since(start))
	}()

	select {
	case result := <-done:
		return result
	case <-ctx.Done():
		return Result{
			Status:    StatusUnhealthy,
			Message:   "check timed out",
			Error:     ErrCheckTimeout,
			Duration:  time.Since(start),
			Timestamp: start,
		}
	}
}

// Checker exposes the whole aggregator as one Checker named "aggregate",
// with each check summarized in its details.
func (a *Aggregator) Checker() Checker {
	return NewCheckerFunc("aggregate", func(ctx context.Context) Result {
		results := a.CheckAll(ctx)
		status := a.OverallStatus(results)

		details := make(map[string]any, len(results))
		for name, r := range results {
			details[name] = map[string]any{
				"status":   r.Status.String(),
				"message":  r.Message,
				"duration": r.Duration.String(),
			}
		}

		return Result{
			Status:    status,
			Message:   aggregateMessages[status],
			Details:   details,
			Timestamp: time.Now(),
		}
	})
}

var aggregateMessages = map[Status]string{
	StatusHealthy:   "all checks passed",
	StatusDegraded:  "some checks degraded",
	StatusUnhealthy: "some checks failed",
}
