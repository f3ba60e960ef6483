package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// CacheMeta describes a cached computation for telemetry purposes.
type CacheMeta struct {
	Name      string // Cache domain, e.g. "chat" (required)
	Operation string // Caller operation, e.g. "reply" (optional)
	Model     string // Upstream model identifier (optional)
}

// SpanName returns the deterministic span name for this computation.
// Format: cache.compute.<name>.<operation> or cache.compute.<name>
func (m CacheMeta) SpanName() string {
	if m.Operation != "" {
		return "cache.compute." + m.Name + "." + m.Operation
	}
	return "cache.compute." + m.Name
}

// Validate reports ErrMissingCacheName when Name is empty.
func (m CacheMeta) Validate() error {
	if m.Name == "" {
		return ErrMissingCacheName
	}
	return nil
}

// attributes returns the log attributes of m, omitting empty optionals.
func (m CacheMeta) attributes() map[string]any {
	attrs := map[string]any{"cache.name": m.Name}
	if m.Operation != "" {
		attrs["cache.operation"] = m.Operation
	}
	if m.Model != "" {
		attrs["cache.model"] = m.Model
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing around producer runs.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a producer run.
	StartSpan(ctx context.Context, meta CacheMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with cache metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta CacheMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("cache.name", meta.Name),
		attribute.Bool("cache.error", false), // updated in EndSpan
	}
	if meta.Operation != "" {
		attrs = append(attrs, attribute.String("cache.operation", meta.Operation))
	}
	if meta.Model != "" {
		attrs = append(attrs, attribute.String("cache.model", meta.Model))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("cache.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

// NewNoopTracer creates a Tracer that records nothing.
func NewNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta CacheMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
