// Package hook defines the lifecycle hook system for the throttling
// engine. Hooks are notified of lifecycle events (request enqueued,
// dispatched, completed, rate limit reached, etc.) and can react to them —
// logging, metrics, status reporting.
//
// Each lifecycle event is a separate interface so hooks opt in only to the
// events they care about.
package hook

import (
	"context"
	"time"

	"github.com/postsharp/teamcity-azure-agent/throttle/id"
	"github.com/postsharp/teamcity-azure-agent/throttle/task"
)

// Hook is the base interface all hooks must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// ──────────────────────────────────────────────────
// Request lifecycle hooks
// ──────────────────────────────────────────────────

// TaskRegistered is called after a task type is registered.
type TaskRegistered interface {
	OnTaskRegistered(ctx context.Context, d task.Descriptor) error
}

// RequestEnqueued is called after a request is appended to its queue.
type RequestEnqueued interface {
	OnRequestEnqueued(ctx context.Context, typeID task.TypeID, requestID id.RequestID) error
}

// RequestDispatched is called when the tick loop hands a request to the
// remote call.
type RequestDispatched interface {
	OnRequestDispatched(ctx context.Context, typeID task.TypeID, requestID id.RequestID) error
}

// RequestCompleted is called after a request's remote call succeeds.
// requests is how many underlying network requests the call consumed.
type RequestCompleted interface {
	OnRequestCompleted(ctx context.Context, typeID task.TypeID, requestID id.RequestID, elapsed time.Duration, requests int) error
}

// RequestFailed is called when a request's remote call fails.
type RequestFailed interface {
	OnRequestFailed(ctx context.Context, typeID task.TypeID, requestID id.RequestID, err error) error
}

// RequestTimedOut is called when a timeout-bounded request's handle is
// resolved by the timeout instead of the remote call.
type RequestTimedOut interface {
	OnRequestTimedOut(ctx context.Context, typeID task.TypeID, requestID id.RequestID, timeout time.Duration) error
}

// ──────────────────────────────────────────────────
// Quota lifecycle hooks
// ──────────────────────────────────────────────────

// RateLimitReached is called when a remote call reports throttling.
type RateLimitReached interface {
	OnRateLimitReached(ctx context.Context, typeID task.TypeID, retryAfter time.Duration) error
}

// WindowReset is called when telemetry indicates a fresh quota window.
type WindowReset interface {
	OnWindowReset(ctx context.Context, remainingReads int64) error
}

// Shutdown is called during engine shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
