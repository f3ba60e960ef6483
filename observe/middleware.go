package observe

import (
	"context"
	"time"

	"github.com/dealcraft/replycache/cache"
)

// Middleware wraps producers with observability (tracing, metrics, logging).
// A wrapped producer only runs on a cache miss, so every span, counter and
// log line it emits corresponds to one upstream call.
//
// Contract:
//   - Concurrency: wrapped producers are safe for concurrent use when the
//     underlying producer is.
//   - Context: the span context is passed to the wrapped producer.
//   - Errors: producer errors are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics ComputeMetrics
	logger  Logger
	now     func() time.Time
}

// NewMiddleware creates a Middleware from the given components. Nil
// components are replaced by no-op implementations.
func NewMiddleware(tracer Tracer, metrics ComputeMetrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NewNoopTracer()
	}
	if metrics == nil {
		metrics = NewNoopComputeMetrics()
	}
	if logger == nil {
		logger = NewNoopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Logger returns the middleware's base logger.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// observe runs fn inside a span and records its outcome.
func (m *Middleware) observe(ctx context.Context, meta CacheMeta, fn func(context.Context) error) error {
	ctx, span := m.tracer.StartSpan(ctx, meta)
	start := m.now()

	err := fn(ctx)

	duration := m.now().Sub(start)
	m.tracer.EndSpan(span, err)
	m.metrics.RecordCompute(ctx, meta, duration, err)

	log := m.logger.WithCache(meta)
	fields := []Field{
		{Key: "duration_ms", Value: float64(duration.Milliseconds())},
	}
	if err != nil {
		fields = append(fields, Field{Key: "error", Value: err.Error()})
		log.Error(ctx, "cache compute failed", fields...)
	} else {
		log.Info(ctx, "cache compute completed", fields...)
	}
	return err
}

// WrapProducer returns a producer that runs produce under m's tracing,
// metrics and logging. The produced value is passed through untouched.
func WrapProducer[T any](m *Middleware, meta CacheMeta, produce cache.Producer[T]) cache.Producer[T] {
	if m == nil || produce == nil {
		return produce
	}
	return func(ctx context.Context) (T, error) {
		var result T
		err := m.observe(ctx, meta, func(ctx context.Context) error {
			var err error
			result, err = produce(ctx)
			return err
		})
		return result, err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewComputeMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// CacheMetricsFromObserver creates CacheMetrics on the observer's meter.
func CacheMetricsFromObserver(obs Observer) (*CacheMetrics, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	return NewCacheMetrics(obs.Meter())
}
