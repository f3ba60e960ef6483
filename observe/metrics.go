package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dealcraft/replycache/cache"
)

// ComputeMetrics records producer runs, which only happen on cache misses.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type ComputeMetrics interface {
	// RecordCompute records one producer run with its duration and outcome.
	RecordCompute(ctx context.Context, meta CacheMeta, duration time.Duration, err error)
}

type computeMetrics struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewComputeMetrics registers the producer instruments on meter.
func NewComputeMetrics(meter metric.Meter) (ComputeMetrics, error) {
	totalCount, err := meter.Int64Counter(
		"cache.compute.total",
		metric.WithDescription("Total number of producer runs on cache miss"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"cache.compute.errors",
		metric.WithDescription("Total number of failed producer runs"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"cache.compute.duration_ms",
		metric.WithDescription("Producer run duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &computeMetrics{
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
	}, nil
}

func (m *computeMetrics) RecordCompute(ctx context.Context, meta CacheMeta, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("cache.name", meta.Name),
	}
	if meta.Operation != "" {
		attrs = append(attrs, attribute.String("cache.operation", meta.Operation))
	}
	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

type noopComputeMetrics struct{}

// NewNoopComputeMetrics returns ComputeMetrics that records nothing.
func NewNoopComputeMetrics() ComputeMetrics {
	return noopComputeMetrics{}
}

func (noopComputeMetrics) RecordCompute(context.Context, CacheMeta, time.Duration, error) {}

// CacheMetrics exports store events as OpenTelemetry counters. It satisfies
// cache.Recorder and is passed to cache.NewStore via cache.WithRecorder.
//
// Store callbacks carry no context, so measurements use context.Background.
type CacheMetrics struct {
	hits        metric.Int64Counter
	misses      metric.Int64Counter
	evictions   metric.Int64Counter
	expirations metric.Int64Counter
}

// NewCacheMetrics registers the store instruments on meter.
func NewCacheMetrics(meter metric.Meter) (*CacheMetrics, error) {
	hits, err := meter.Int64Counter(
		"cache.hits",
		metric.WithDescription("Lookups served from the cache"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	misses, err := meter.Int64Counter(
		"cache.misses",
		metric.WithDescription("Lookups that found no live entry"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	evictions, err := meter.Int64Counter(
		"cache.evictions",
		metric.WithDescription("Entries removed to stay within max size"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	expirations, err := meter.Int64Counter(
		"cache.expirations",
		metric.WithDescription("Entries removed after their TTL elapsed"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return &CacheMetrics{
		hits:        hits,
		misses:      misses,
		evictions:   evictions,
		expirations: expirations,
	}, nil
}

func nameAttr(name string) metric.AddOption {
	return metric.WithAttributes(attribute.String("cache.name", name))
}

// RecordHit implements cache.Recorder.
func (m *CacheMetrics) RecordHit(name string) {
	m.hits.Add(context.Background(), 1, nameAttr(name))
}

// RecordMiss implements cache.Recorder.
func (m *CacheMetrics) RecordMiss(name string) {
	m.misses.Add(context.Background(), 1, nameAttr(name))
}

// RecordEviction implements cache.Recorder.
func (m *CacheMetrics) RecordEviction(name string) {
	m.evictions.Add(context.Background(), 1, nameAttr(name))
}

// RecordExpiration implements cache.Recorder.
func (m *CacheMetrics) RecordExpiration(name string, n int) {
	m.expirations.Add(context.Background(), int64(n), nameAttr(name))
}

var _ cache.Recorder = (*CacheMetrics)(nil)
