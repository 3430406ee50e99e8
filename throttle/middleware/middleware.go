// Package middleware provides composable middleware around remote
// operation execution. Middleware wraps the call synchronously and can
// modify execution (recover from panics, log, record metrics, add tracing).
package middleware

import (
	"context"

	"github.com/postsharp/teamcity-azure-agent/throttle/task"
)

// Handler is the terminal function that performs the remote operation.
type Handler func(ctx context.Context) (any, error)

// Middleware wraps a Handler with cross-cutting logic. It receives the
// current context, the descriptor of the task being executed, and the next
// handler to call. Middleware MUST call next to continue the chain
// (unless short-circuiting on error).
type Middleware func(ctx context.Context, d task.Descriptor, next Handler) (any, error)

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, metrics) executes as:
//
//	logging → recover → metrics → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, d task.Descriptor, next Handler) (any, error) {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) (any, error) {
				return mw(ctx, d, prev)
			}
		}
		return h(ctx)
	}
}
