package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer(systemName)

// StartSpan starts a span named name of the given kind against the
// currently registered global TracerProvider, the same global-provider
// pattern Emit uses for logging. Callers defer span.End() and call
// span.RecordError/SetStatus on failure (see the executor-invocation,
// persistence, and push-delivery call sites).
func StartSpan(ctx context.Context, name string, kind trace.SpanKind) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithSpanKind(kind))
}
