package throttle

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/postsharp/teamcity-azure-agent/throttle/adapter"
	"github.com/postsharp/teamcity-azure-agent/throttle/backoff"
	"github.com/postsharp/teamcity-azure-agent/throttle/future"
	"github.com/postsharp/teamcity-azure-agent/throttle/hook"
	"github.com/postsharp/teamcity-azure-agent/throttle/id"
	mw "github.com/postsharp/teamcity-azure-agent/throttle/middleware"
	"github.com/postsharp/teamcity-azure-agent/throttle/strategy"
	"github.com/postsharp/teamcity-azure-agent/throttle/task"
)

// instrumentationName is the scope name used for the default OTel
// middleware built by New.
const instrumentationName = "github.com/postsharp/teamcity-azure-agent/throttle"

// lifecycleState tracks the engine lifecycle: Created → Started → Stopped.
// A stopped engine is terminal; construct a fresh instance to restart.
type lifecycleState int

const (
	stateCreated lifecycleState = iota
	stateStarted
	stateStopped
)

// Throttler multiplexes many task types over one shared quota budget.
// Callers register task types once at startup, then enqueue requests that
// the periodic tick dispatches one at a time, paced by live quota
// telemetry.
type Throttler struct {
	cfg      Config
	logger   *slog.Logger
	engineID id.EngineID

	adapter  *adapter.Adapter
	strategy *strategy.Strategy
	hooks    *hook.Registry
	chain    mw.Middleware

	// Collected by options, consumed by New.
	hookList       []hook.Hook
	userMws        []mw.Middleware
	cooldown       backoff.Strategy
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider

	queuesMu sync.RWMutex
	queues   map[task.TypeID]*taskQueue

	// lifeMu guards the lifecycle state: cheap concurrent reads of
	// "is running", exclusive writes for transitions.
	lifeMu sync.RWMutex
	state  lifecycleState
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Throttler. Register task types before calling Start.
func New(opts ...Option) *Throttler {
	t := &Throttler{
		cfg:      DefaultConfig(),
		logger:   slog.Default(),
		engineID: id.NewEngineID(),
		queues:   make(map[task.TypeID]*taskQueue),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.adapter = adapter.New(
		adapter.WithWindowLength(t.cfg.WindowLength),
		adapter.WithInitialReads(t.cfg.InitialReads),
		adapter.WithLogger(t.logger),
	)

	stratOpts := []strategy.Option{
		strategy.WithBlockingDelay(t.cfg.BlockingDelay),
		strategy.WithMaxDelay(t.cfg.MaxDelay),
		strategy.WithLogger(t.logger),
	}
	if t.cooldown != nil {
		stratOpts = append(stratOpts, strategy.WithCooldown(t.cooldown))
	}
	if t.cfg.DispatchRate > 0 {
		stratOpts = append(stratOpts, strategy.WithDispatchCeiling(t.cfg.DispatchRate, t.cfg.DispatchBurst))
	}
	t.strategy = strategy.New(t.adapter, stratOpts...)

	t.hooks = hook.NewRegistry(t.logger)
	for _, h := range t.hookList {
		t.hooks.Register(h)
	}

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if t.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(t.tracerProvider.Tracer(instrumentationName))
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if t.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(t.meterProvider.Meter(instrumentationName))
	} else {
		metricsMw = mw.Metrics()
	}

	// Default middleware stack: recover → tracing → metrics → logging.
	defaultMws := []mw.Middleware{
		mw.Recover(t.logger),
		tracingMw,
		metricsMw,
		mw.Logging(t.logger),
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(t.userMws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, t.userMws...)
	t.chain = mw.Chain(allMws...)

	return t
}

// EngineID returns the unique identifier of this engine instance.
func (t *Throttler) EngineID() id.EngineID { return t.engineID }

// Hooks returns the hook registry.
func (t *Throttler) Hooks() *hook.Registry { return t.hooks }

// Window returns a read-only snapshot of the tracked quota window.
func (t *Throttler) Window() adapter.Window { return t.adapter.Snapshot() }

// IsSuspended reports whether dispatch is currently suspended by a
// rate-limit cooldown.
func (t *Throttler) IsSuspended() bool {
	return t.strategy.Flow() == strategy.FlowSuspended
}

// TaskList returns a read-only snapshot of the registered task
// descriptors, sorted by type.
func (t *Throttler) TaskList() []task.Descriptor {
	t.queuesMu.RLock()
	defer t.queuesMu.RUnlock()

	list := make([]task.Descriptor, 0, len(t.queues))
	for _, q := range t.queues {
		list = append(list, q.descriptor())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Type < list[j].Type })
	return list
}

// QueueDepth returns the number of pending requests for a task type,
// or 0 if the type is unknown.
func (t *Throttler) QueueDepth(typeID task.TypeID) int {
	t.queuesMu.RLock()
	q := t.queues[typeID]
	t.queuesMu.RUnlock()

	if q == nil {
		return 0
	}
	return q.requests.Len()
}

// Register registers a typed task definition with the throttler.
// The typed Run function is wrapped in a closure that checks the parameter
// type before calling it — the parameter and result types are captured
// here, at registration time.
func Register[P, R any](t *Throttler, def *task.Definition[P, R]) error {
	runner := func(ctx context.Context, params any) (any, error) {
		p, ok := params.(P)
		if !ok {
			return nil, fmt.Errorf("throttle: task %q: unexpected params type %T", def.Type, params)
		}
		return def.Run(ctx, p)
	}
	return t.register(def.Type, runner, def.Opts.Execution, def.Opts.Timeout)
}

// register stores a new task queue for the type. Duplicate registration
// is a programmer error and fails immediately.
func (t *Throttler) register(typeID task.TypeID, runner task.Runner, execution task.ExecutionType, timeout time.Duration) error {
	if typeID == "" {
		return fmt.Errorf("throttle: empty task type")
	}

	t.queuesMu.Lock()
	if _, exists := t.queues[typeID]; exists {
		t.queuesMu.Unlock()
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, typeID)
	}
	q := newTaskQueue(typeID, execution, timeout, runner, t.adapter, t.strategy, t.hooks, t.chain, t.logger)
	t.queues[typeID] = q
	t.queuesMu.Unlock()

	t.hooks.EmitTaskRegistered(context.Background(), q.descriptor())
	t.logger.Info("task registered",
		slog.String("task_type", string(typeID)),
		slog.String("execution", execution.String()),
	)
	return nil
}

// Execute enqueues a request for the task type and returns its result
// handle immediately. The request is dispatched by a later tick; the
// handle settles when the remote call does.
func Execute[P, R any](t *Throttler, typeID task.TypeID, params P) (*future.Handle[R], error) {
	h := future.New[R]()
	if _, err := t.enqueue(typeID, params, settleInto(typeID, h)); err != nil {
		return nil, err
	}
	return h, nil
}

// ExecuteWithTimeout is Execute plus a deadline: if the handle has not
// settled within the task type's timeout (or the engine default), it is
// resolved with ErrTimeout. The in-flight remote call is not cancelled —
// it may still complete and mutate remote state; its outcome is discarded
// from the caller's perspective, but its quota telemetry is still applied.
func ExecuteWithTimeout[P, R any](t *Throttler, typeID task.TypeID, params P) (*future.Handle[R], error) {
	h := future.New[R]()

	req, err := t.enqueue(typeID, params, settleInto(typeID, h))
	if err != nil {
		return nil, err
	}

	timeout := t.timeoutFor(typeID)
	timer := time.AfterFunc(timeout, func() {
		if h.Fail(ErrTimeout) {
			t.hooks.EmitRequestTimedOut(context.Background(), typeID, req.ID, timeout)
			t.logger.Warn("task timed out",
				slog.String("task_type", string(typeID)),
				slog.String("request_id", req.ID.String()),
				slog.Duration("timeout", timeout),
			)
		}
	})

	// Stop the timer once the real completion wins the race.
	go func() {
		<-h.Done()
		timer.Stop()
	}()

	return h, nil
}

// settleInto adapts the type-erased settle callback to the typed handle.
// The handle's single-assignment semantics make racing settlers safe.
func settleInto[R any](typeID task.TypeID, h *future.Handle[R]) func(any, error) {
	return func(value any, err error) {
		if err != nil {
			h.Fail(err)
			return
		}
		r, ok := value.(R)
		if !ok {
			h.Fail(fmt.Errorf("throttle: task %q returned %T, not the requested result type", typeID, value))
			return
		}
		h.Complete(r)
	}
}

// timeoutFor resolves the effective timeout for a task type at call time.
func (t *Throttler) timeoutFor(typeID task.TypeID) time.Duration {
	t.queuesMu.RLock()
	q := t.queues[typeID]
	t.queuesMu.RUnlock()

	if q != nil && q.timeout > 0 {
		return q.timeout
	}
	return t.cfg.TaskTimeout
}

// enqueue appends a request to the task type's queue.
func (t *Throttler) enqueue(typeID task.TypeID, params any, settle func(any, error)) (*task.Request, error) {
	t.lifeMu.RLock()
	stopped := t.state == stateStopped
	t.lifeMu.RUnlock()
	if stopped {
		return nil, ErrStopped
	}

	t.queuesMu.RLock()
	q := t.queues[typeID]
	t.queuesMu.RUnlock()
	if q == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, typeID)
	}

	req := task.NewRequest(params, settle)
	q.requests.Enqueue(req)

	t.hooks.EmitRequestEnqueued(context.Background(), typeID, req.ID)
	return req, nil
}

// Start installs the periodic scheduling tick. It returns true on the
// first call and false if the engine is already running or was stopped —
// a stopped engine is not restartable.
func (t *Throttler) Start(_ context.Context) bool {
	t.lifeMu.Lock()
	defer t.lifeMu.Unlock()

	if t.state != stateCreated {
		return false
	}
	t.state = stateStarted

	t.wg.Add(1)
	go t.tickLoop()

	t.logger.Info("throttler started",
		slog.String("engine_id", t.engineID.String()),
		slog.Duration("tick_interval", t.cfg.TickInterval),
	)
	return true
}

// Stop cancels the tick loop and waits for it to finish. Safe to call
// more than once and on a never-started engine; only the call that
// performs the transition returns true. No dispatch occurs after Stop
// returns.
func (t *Throttler) Stop(_ context.Context) bool {
	t.lifeMu.Lock()
	if t.state != stateStarted {
		t.lifeMu.Unlock()
		return false
	}
	t.state = stateStopped
	close(t.stopCh)
	t.lifeMu.Unlock()

	t.wg.Wait()
	t.hooks.EmitShutdown(context.Background())
	t.logger.Info("throttler stopped", slog.String("engine_id", t.engineID.String()))
	return true
}

// tickLoop drives the scheduling step until Stop.
func (t *Throttler) tickLoop() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.executeNextTask()
		}
	}
}

// executeNextTask runs one scheduling step: offer the tick to every queue
// in fairness order (least recently considered first) and stop at the
// first one that dispatches. At most one request is dispatched per tick
// system-wide. The pacing recomputation is skipped on an idle tick — a
// tick that ran nothing consumed no quota.
func (t *Throttler) executeNextTask() {
	now := time.Now()

	t.queuesMu.RLock()
	queues := make([]*taskQueue, 0, len(t.queues))
	for _, q := range t.queues {
		queues = append(queues, q)
	}
	t.queuesMu.RUnlock()

	sort.Slice(queues, func(i, j int) bool {
		if !queues[i].lastConsidered.Equal(queues[j].lastConsidered) {
			return queues[i].lastConsidered.Before(queues[j].lastConsidered)
		}
		return queues[i].typeID < queues[j].typeID
	})

	dispatched := false
	for _, q := range queues {
		if q.executeNext(now) {
			dispatched = true
			break
		}
	}

	if dispatched {
		t.strategy.ApplyTaskChanges()
	}
}
