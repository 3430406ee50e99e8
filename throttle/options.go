package throttle

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/postsharp/teamcity-azure-agent/throttle/backoff"
	"github.com/postsharp/teamcity-azure-agent/throttle/hook"
	mw "github.com/postsharp/teamcity-azure-agent/throttle/middleware"
)

// Option configures a Throttler.
type Option func(*Throttler)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(t *Throttler) { t.cfg = cfg }
}

// WithLogger sets the structured logger for the engine.
func WithLogger(l *slog.Logger) Option {
	return func(t *Throttler) { t.logger = l }
}

// WithTickInterval sets how often the scheduling tick runs.
func WithTickInterval(d time.Duration) Option {
	return func(t *Throttler) { t.cfg.TickInterval = d }
}

// WithTaskTimeout sets the default timeout for ExecuteWithTimeout.
func WithTaskTimeout(d time.Duration) Option {
	return func(t *Throttler) { t.cfg.TaskTimeout = d }
}

// WithWindowLength sets the remote API's rolling quota window length.
func WithWindowLength(d time.Duration) Option {
	return func(t *Throttler) { t.cfg.WindowLength = d }
}

// WithInitialReads sets the assumed quota allowance before the first
// explicit telemetry arrives.
func WithInitialReads(n int64) Option {
	return func(t *Throttler) { t.cfg.InitialReads = n }
}

// WithBlockingDelay sets the minimum interval between dispatches of
// blocking task types.
func WithBlockingDelay(d time.Duration) Option {
	return func(t *Throttler) { t.cfg.BlockingDelay = d }
}

// WithMaxDelay caps the adaptive pacing delay for non-blocking task types.
func WithMaxDelay(d time.Duration) Option {
	return func(t *Throttler) { t.cfg.MaxDelay = d }
}

// WithDispatchCeiling installs a hard token-bucket ceiling on dispatches
// per second, applied on top of quota pacing.
func WithDispatchCeiling(perSecond float64, burst int) Option {
	return func(t *Throttler) {
		t.cfg.DispatchRate = perSecond
		t.cfg.DispatchBurst = burst
	}
}

// WithCooldown sets the cooldown strategy applied when the remote API
// throttles without suggesting a retry interval.
func WithCooldown(b backoff.Strategy) Option {
	return func(t *Throttler) { t.cooldown = b }
}

// WithHook registers a lifecycle hook with the engine.
func WithHook(h hook.Hook) Option {
	return func(t *Throttler) { t.hookList = append(t.hookList, h) }
}

// WithMiddleware adds middleware to the engine's chain, after the
// default stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(t *Throttler) { t.userMws = append(t.userMws, m) }
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// When set, the metrics middleware uses this provider instead of the
// global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(t *Throttler) { t.meterProvider = mp }
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// When set, the tracing middleware uses this provider instead of the
// global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(t *Throttler) { t.tracerProvider = tp }
}
