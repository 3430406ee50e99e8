// Package observability provides a hook-driven metrics extension that
// tracks engine-wide lifecycle counts via OpenTelemetry.
package observability

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/postsharp/teamcity-azure-agent/throttle/hook"
	"github.com/postsharp/teamcity-azure-agent/throttle/id"
	"github.com/postsharp/teamcity-azure-agent/throttle/task"
)

// meterName is the instrumentation scope name for the extension.
const meterName = "github.com/postsharp/teamcity-azure-agent/throttle/observability"

// Compile-time interface checks.
var (
	_ hook.Hook              = (*MetricsExtension)(nil)
	_ hook.RequestEnqueued   = (*MetricsExtension)(nil)
	_ hook.RequestDispatched = (*MetricsExtension)(nil)
	_ hook.RequestCompleted  = (*MetricsExtension)(nil)
	_ hook.RequestFailed     = (*MetricsExtension)(nil)
	_ hook.RequestTimedOut   = (*MetricsExtension)(nil)
	_ hook.RateLimitReached  = (*MetricsExtension)(nil)
	_ hook.WindowReset       = (*MetricsExtension)(nil)
)

// MetricsExtension records engine lifecycle metrics. Register it as a
// throttle hook to automatically track enqueue/dispatch/completion rates,
// failures, timeouts, rate-limit hits, and quota window resets.
type MetricsExtension struct {
	enqueued     metric.Int64Counter
	dispatched   metric.Int64Counter
	completed    metric.Int64Counter
	failed       metric.Int64Counter
	timedOut     metric.Int64Counter
	rateLimits   metric.Int64Counter
	windowResets metric.Int64Counter
	waitTime     metric.Float64Histogram

	// lastRemaining mirrors the most recently observed remaining quota
	// so the gauge callback never blocks on engine state.
	lastRemaining atomic.Int64
}

// NewMetricsExtension creates a MetricsExtension using the global
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. Use this variant to inject a test MeterProvider.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	m := &MetricsExtension{}

	// Instrument creation errors fall back to noop instruments.
	m.enqueued, _ = meter.Int64Counter("throttle.request.enqueued",
		metric.WithDescription("Total requests enqueued"))
	m.dispatched, _ = meter.Int64Counter("throttle.request.dispatched",
		metric.WithDescription("Total requests dispatched"))
	m.completed, _ = meter.Int64Counter("throttle.request.completed",
		metric.WithDescription("Total requests completed successfully"))
	m.failed, _ = meter.Int64Counter("throttle.request.failed",
		metric.WithDescription("Total requests failed"))
	m.timedOut, _ = meter.Int64Counter("throttle.request.timed_out",
		metric.WithDescription("Total requests resolved by timeout"))
	m.rateLimits, _ = meter.Int64Counter("throttle.rate_limit.hits",
		metric.WithDescription("Total rate-limit signals received"))
	m.windowResets, _ = meter.Int64Counter("throttle.window.resets",
		metric.WithDescription("Total quota window resets observed"))
	m.waitTime, _ = meter.Float64Histogram("throttle.request.duration",
		metric.WithDescription("Duration of completed requests in seconds"),
		metric.WithUnit("s"))

	_, _ = meter.Int64ObservableGauge("throttle.window.remaining_reads",
		metric.WithDescription("Last observed remaining quota allowance"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.lastRemaining.Load())
			return nil
		}))

	return m
}

// Name implements hook.Hook.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnRequestEnqueued implements hook.RequestEnqueued.
func (m *MetricsExtension) OnRequestEnqueued(ctx context.Context, _ task.TypeID, _ id.RequestID) error {
	m.enqueued.Add(ctx, 1)
	return nil
}

// OnRequestDispatched implements hook.RequestDispatched.
func (m *MetricsExtension) OnRequestDispatched(ctx context.Context, _ task.TypeID, _ id.RequestID) error {
	m.dispatched.Add(ctx, 1)
	return nil
}

// OnRequestCompleted implements hook.RequestCompleted.
func (m *MetricsExtension) OnRequestCompleted(ctx context.Context, _ task.TypeID, _ id.RequestID, elapsed time.Duration, _ int) error {
	m.completed.Add(ctx, 1)
	m.waitTime.Record(ctx, elapsed.Seconds())
	return nil
}

// OnRequestFailed implements hook.RequestFailed.
func (m *MetricsExtension) OnRequestFailed(ctx context.Context, _ task.TypeID, _ id.RequestID, _ error) error {
	m.failed.Add(ctx, 1)
	return nil
}

// OnRequestTimedOut implements hook.RequestTimedOut.
func (m *MetricsExtension) OnRequestTimedOut(ctx context.Context, _ task.TypeID, _ id.RequestID, _ time.Duration) error {
	m.timedOut.Add(ctx, 1)
	return nil
}

// OnRateLimitReached implements hook.RateLimitReached.
func (m *MetricsExtension) OnRateLimitReached(ctx context.Context, _ task.TypeID, _ time.Duration) error {
	m.rateLimits.Add(ctx, 1)
	return nil
}

// OnWindowReset implements hook.WindowReset.
func (m *MetricsExtension) OnWindowReset(ctx context.Context, remainingReads int64) error {
	m.windowResets.Add(ctx, 1)
	m.lastRemaining.Store(remainingReads)
	return nil
}
