package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/postsharp/teamcity-azure-agent/throttle/task"
)

// meterName is the instrumentation scope name for throttle metrics.
const meterName = "github.com/postsharp/teamcity-azure-agent/throttle"

// Metrics returns middleware that records per-call execution metrics using
// the global OTel MeterProvider. If no MeterProvider is configured, noop
// instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - throttle.task.duration (Float64Histogram): remote call time in
//     seconds, with attributes: task_type, execution, status ("ok"/"error")
//   - throttle.task.calls (Int64Counter): total remote calls,
//     with attributes: task_type, execution, status ("ok"/"error")
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Create instruments once at middleware construction time.
	// OTel instruments are safe for concurrent use. On error, the API
	// returns noop instruments so the middleware degrades gracefully.
	duration, dErr := meter.Float64Histogram(
		"throttle.task.duration",
		metric.WithDescription("Duration of remote task calls in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	calls, cErr := meter.Int64Counter(
		"throttle.task.calls",
		metric.WithDescription("Total number of remote task calls"),
		metric.WithUnit("{call}"),
	)
	_ = cErr // noop fallback guaranteed by OTel API contract

	return func(ctx context.Context, d task.Descriptor, next Handler) (any, error) {
		start := time.Now()
		value, err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("task_type", string(d.Type)),
			attribute.String("execution", d.Execution.String()),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		calls.Add(ctx, 1, attrs)

		return value, err
	}
}
