package throttle

import (
	"context"
	"log/slog"
	"time"

	"github.com/postsharp/teamcity-azure-agent/throttle/adapter"
	"github.com/postsharp/teamcity-azure-agent/throttle/hook"
	mw "github.com/postsharp/teamcity-azure-agent/throttle/middleware"
	"github.com/postsharp/teamcity-azure-agent/throttle/strategy"
	"github.com/postsharp/teamcity-azure-agent/throttle/task"
)

// taskQueue binds one task type's request queue to the shared adapter and
// strategy. The tick loop is its only scheduler: lastConsidered and
// lastDispatched are touched exclusively from the tick goroutine.
type taskQueue struct {
	typeID    task.TypeID
	execution task.ExecutionType
	timeout   time.Duration
	runner    task.Runner
	requests  *task.RequestQueue

	adapter  *adapter.Adapter
	strategy *strategy.Strategy
	hooks    *hook.Registry
	chain    mw.Middleware
	logger   *slog.Logger

	// Fairness key: stamped every time the tick considers this queue.
	lastConsidered time.Time
	lastDispatched time.Time
}

func newTaskQueue(
	typeID task.TypeID,
	execution task.ExecutionType,
	timeout time.Duration,
	runner task.Runner,
	a *adapter.Adapter,
	s *strategy.Strategy,
	hooks *hook.Registry,
	chain mw.Middleware,
	logger *slog.Logger,
) *taskQueue {
	return &taskQueue{
		typeID:    typeID,
		execution: execution,
		timeout:   timeout,
		runner:    runner,
		requests:  task.NewRequestQueue(),
		adapter:   a,
		strategy:  s,
		hooks:     hooks,
		chain:     chain,
		logger:    logger,
	}
}

// descriptor returns the read-only snapshot of this task type.
func (q *taskQueue) descriptor() task.Descriptor {
	return task.Descriptor{
		Type:      q.typeID,
		Execution: q.execution,
		Timeout:   q.timeout,
	}
}

// executeNext dispatches the oldest pending request if this queue is
// eligible on this tick. Returns true iff it dispatched. The remote call
// runs on its own goroutine — the tick thread hands off and returns.
func (q *taskQueue) executeNext(now time.Time) bool {
	q.lastConsidered = now

	if q.requests.Len() == 0 {
		return false
	}
	if q.strategy.Flow() != strategy.FlowActive {
		return false
	}
	if !q.lastDispatched.IsZero() && now.Sub(q.lastDispatched) < q.strategy.Delay(q.execution) {
		return false
	}
	if !q.strategy.AllowDispatch() {
		return false
	}

	req, ok := q.requests.TakeHead()
	if !ok {
		return false
	}
	q.lastDispatched = now

	go q.dispatch(req)
	return true
}

// dispatch runs one request through the middleware chain and the adapter,
// feeds telemetry back into the strategy, and settles the result handle.
// Completion never re-enters the tick loop.
func (q *taskQueue) dispatch(req *task.Request) {
	ctx := context.Background()
	q.hooks.EmitRequestDispatched(ctx, q.typeID, req.ID)

	terminal := func(ctx context.Context) (any, error) {
		return q.runner(ctx, req.Params)
	}

	start := time.Now()
	res := q.adapter.Execute(ctx, func(ctx context.Context) (any, error) {
		return q.chain(ctx, q.descriptor(), terminal)
	})
	elapsed := time.Since(start)

	if res.WindowReset {
		q.hooks.EmitWindowReset(ctx, q.adapter.RemainingReads())
	}
	if res.RateLimited {
		q.strategy.NotifyRateLimitReached(res.RetryAfter)
		q.hooks.EmitRateLimitReached(ctx, q.typeID, res.RetryAfter)
	}
	// A throttled call must not reset the escalation streak.
	q.strategy.NotifyCompleted(!res.RateLimited && res.RequestCount > 0)

	if res.Err != nil {
		q.hooks.EmitRequestFailed(ctx, q.typeID, req.ID, res.Err)
		req.Settle(nil, res.Err)
		return
	}

	q.hooks.EmitRequestCompleted(ctx, q.typeID, req.ID, elapsed, res.RequestCount)
	req.Settle(res.Value, nil)
}
