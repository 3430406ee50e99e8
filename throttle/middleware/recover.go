package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/postsharp/teamcity-azure-agent/throttle/task"
)

// Recover returns middleware that recovers from panics in the operation.
// Panics are converted to errors and logged with a stack trace, so a
// misbehaving remote client settles the caller's handle instead of killing
// the dispatch goroutine.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, d task.Descriptor, next Handler) (value any, retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("task operation panicked",
					slog.String("task_type", string(d.Type)),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				value = nil
				retErr = fmt.Errorf("panic in task %s: %v", d.Type, r)
			}
		}()
		return next(ctx)
	}
}
