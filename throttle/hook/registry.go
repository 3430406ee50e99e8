package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/postsharp/teamcity-azure-agent/throttle/id"
	"github.com/postsharp/teamcity-azure-agent/throttle/task"
)

// Named entry types pair a hook implementation with the hook name captured
// at registration time. This avoids type-asserting back to Hook inside the
// emit methods.
type taskRegisteredEntry struct {
	name string
	hook TaskRegistered
}

type requestEnqueuedEntry struct {
	name string
	hook RequestEnqueued
}

type requestDispatchedEntry struct {
	name string
	hook RequestDispatched
}

type requestCompletedEntry struct {
	name string
	hook RequestCompleted
}

type requestFailedEntry struct {
	name string
	hook RequestFailed
}

type requestTimedOutEntry struct {
	name string
	hook RequestTimedOut
}

type rateLimitReachedEntry struct {
	name string
	hook RateLimitReached
}

type windowResetEntry struct {
	name string
	hook WindowReset
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered hooks and dispatches lifecycle events to
// them. It type-caches hooks at registration time so emit calls iterate
// only over hooks that implement the relevant event.
type Registry struct {
	hooks  []Hook
	logger *slog.Logger

	// Type-cached slices for each lifecycle event.
	taskRegistered    []taskRegisteredEntry
	requestEnqueued   []requestEnqueuedEntry
	requestDispatched []requestDispatchedEntry
	requestCompleted  []requestCompletedEntry
	requestFailed     []requestFailedEntry
	requestTimedOut   []requestTimedOutEntry
	rateLimitReached  []rateLimitReachedEntry
	windowReset       []windowResetEntry
	shutdown          []shutdownEntry
}

// NewRegistry creates a hook registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds a hook and type-asserts it into all applicable event
// caches. Hooks are notified in registration order.
func (r *Registry) Register(h Hook) {
	r.hooks = append(r.hooks, h)
	name := h.Name()

	if e, ok := h.(TaskRegistered); ok {
		r.taskRegistered = append(r.taskRegistered, taskRegisteredEntry{name, e})
	}
	if e, ok := h.(RequestEnqueued); ok {
		r.requestEnqueued = append(r.requestEnqueued, requestEnqueuedEntry{name, e})
	}
	if e, ok := h.(RequestDispatched); ok {
		r.requestDispatched = append(r.requestDispatched, requestDispatchedEntry{name, e})
	}
	if e, ok := h.(RequestCompleted); ok {
		r.requestCompleted = append(r.requestCompleted, requestCompletedEntry{name, e})
	}
	if e, ok := h.(RequestFailed); ok {
		r.requestFailed = append(r.requestFailed, requestFailedEntry{name, e})
	}
	if e, ok := h.(RequestTimedOut); ok {
		r.requestTimedOut = append(r.requestTimedOut, requestTimedOutEntry{name, e})
	}
	if e, ok := h.(RateLimitReached); ok {
		r.rateLimitReached = append(r.rateLimitReached, rateLimitReachedEntry{name, e})
	}
	if e, ok := h.(WindowReset); ok {
		r.windowReset = append(r.windowReset, windowResetEntry{name, e})
	}
	if e, ok := h.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, e})
	}
}

// Hooks returns all registered hooks.
func (r *Registry) Hooks() []Hook { return r.hooks }

// EmitTaskRegistered notifies all hooks that implement TaskRegistered.
func (r *Registry) EmitTaskRegistered(ctx context.Context, d task.Descriptor) {
	for _, e := range r.taskRegistered {
		if err := e.hook.OnTaskRegistered(ctx, d); err != nil {
			r.logHookError("OnTaskRegistered", e.name, err)
		}
	}
}

// EmitRequestEnqueued notifies all hooks that implement RequestEnqueued.
func (r *Registry) EmitRequestEnqueued(ctx context.Context, typeID task.TypeID, requestID id.RequestID) {
	for _, e := range r.requestEnqueued {
		if err := e.hook.OnRequestEnqueued(ctx, typeID, requestID); err != nil {
			r.logHookError("OnRequestEnqueued", e.name, err)
		}
	}
}

// EmitRequestDispatched notifies all hooks that implement RequestDispatched.
func (r *Registry) EmitRequestDispatched(ctx context.Context, typeID task.TypeID, requestID id.RequestID) {
	for _, e := range r.requestDispatched {
		if err := e.hook.OnRequestDispatched(ctx, typeID, requestID); err != nil {
			r.logHookError("OnRequestDispatched", e.name, err)
		}
	}
}

// EmitRequestCompleted notifies all hooks that implement RequestCompleted.
func (r *Registry) EmitRequestCompleted(ctx context.Context, typeID task.TypeID, requestID id.RequestID, elapsed time.Duration, requests int) {
	for _, e := range r.requestCompleted {
		if err := e.hook.OnRequestCompleted(ctx, typeID, requestID, elapsed, requests); err != nil {
			r.logHookError("OnRequestCompleted", e.name, err)
		}
	}
}

// EmitRequestFailed notifies all hooks that implement RequestFailed.
func (r *Registry) EmitRequestFailed(ctx context.Context, typeID task.TypeID, requestID id.RequestID, reqErr error) {
	for _, e := range r.requestFailed {
		if err := e.hook.OnRequestFailed(ctx, typeID, requestID, reqErr); err != nil {
			r.logHookError("OnRequestFailed", e.name, err)
		}
	}
}

// EmitRequestTimedOut notifies all hooks that implement RequestTimedOut.
func (r *Registry) EmitRequestTimedOut(ctx context.Context, typeID task.TypeID, requestID id.RequestID, timeout time.Duration) {
	for _, e := range r.requestTimedOut {
		if err := e.hook.OnRequestTimedOut(ctx, typeID, requestID, timeout); err != nil {
			r.logHookError("OnRequestTimedOut", e.name, err)
		}
	}
}

// EmitRateLimitReached notifies all hooks that implement RateLimitReached.
func (r *Registry) EmitRateLimitReached(ctx context.Context, typeID task.TypeID, retryAfter time.Duration) {
	for _, e := range r.rateLimitReached {
		if err := e.hook.OnRateLimitReached(ctx, typeID, retryAfter); err != nil {
			r.logHookError("OnRateLimitReached", e.name, err)
		}
	}
}

// EmitWindowReset notifies all hooks that implement WindowReset.
func (r *Registry) EmitWindowReset(ctx context.Context, remainingReads int64) {
	for _, e := range r.windowReset {
		if err := e.hook.OnWindowReset(ctx, remainingReads); err != nil {
			r.logHookError("OnWindowReset", e.name, err)
		}
	}
}

// EmitShutdown notifies all hooks that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block dispatch.
func (r *Registry) logHookError(event, hookName string, err error) {
	r.logger.Warn("hook error",
		slog.String("event", event),
		slog.String("hook", hookName),
		slog.String("error", err.Error()),
	)
}
