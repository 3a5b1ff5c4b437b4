package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "pertforge"

// StartComputeSpan starts a span for one schedule computation.
func StartComputeSpan(ctx context.Context, tasks, t0 int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "schedule.compute",
		trace.WithAttributes(
			attribute.Int("schedule.tasks", tasks),
			attribute.Int("schedule.t0", t0),
		),
	)
}

// StartStoreSpan starts a span for a snapshot store operation.
func StartStoreSpan(ctx context.Context, op, snapshotID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "snapshot."+op,
		trace.WithAttributes(attribute.String("snapshot.id", snapshotID)),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
