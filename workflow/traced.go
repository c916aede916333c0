package workflow

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// TracedPrimitive wraps a primitive with an OpenTelemetry span per
// execution. The span carries the primitive name and workflow correlation id
// so traces line up with structured logs.
type TracedPrimitive struct {
	inner  Primitive
	tracer oteltrace.Tracer
}

// NewTraced wraps inner with tracing. A nil tracer falls back to the global
// tracer provider.
func NewTraced(inner Primitive, tracer oteltrace.Tracer) *TracedPrimitive {
	if tracer == nil {
		tracer = otel.Tracer("flowkit/workflow")
	}
	return &TracedPrimitive{inner: inner, tracer: tracer}
}

func (p *TracedPrimitive) Name() string { return nameOf(p.inner) }

func (p *TracedPrimitive) Execute(ctx context.Context, input any) (any, error) {
	ctx, wc := EnsureContext(ctx)

	ctx, span := p.tracer.Start(ctx, "workflow.execute",
		oteltrace.WithAttributes(
			attribute.String("flowkit.primitive", nameOf(p.inner)),
			attribute.String("flowkit.correlation_id", wc.CorrelationID()),
		))
	defer span.End()

	out, err := safeExecute(ctx, p.inner, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return out, nil
}
