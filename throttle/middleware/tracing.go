package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/postsharp/teamcity-azure-agent/throttle/task"
)

// tracerName is the instrumentation scope name for throttle tracing.
const tracerName = "github.com/postsharp/teamcity-azure-agent/throttle"

// Tracing returns middleware that wraps the remote call in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a pass-through
// with zero overhead.
//
// Span attributes include: throttle.task.type, throttle.task.execution.
// On error, the span status is set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, d task.Descriptor, next Handler) (any, error) {
		ctx, span := tracer.Start(ctx, "throttle.task.execute",
			trace.WithAttributes(
				attribute.String("throttle.task.type", string(d.Type)),
				attribute.String("throttle.task.execution", d.Execution.String()),
			),
			trace.WithSpanKind(trace.SpanKindClient),
		)
		defer span.End()

		value, err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return value, err
	}
}
