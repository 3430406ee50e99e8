package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/postsharp/teamcity-azure-agent/throttle/task"
)

// Logging returns middleware that logs remote call start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, d task.Descriptor, next Handler) (any, error) {
		logger.Debug("task call started",
			slog.String("task_type", string(d.Type)),
			slog.String("execution", d.Execution.String()),
		)

		start := time.Now()
		value, err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("task call failed",
				slog.String("task_type", string(d.Type)),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Debug("task call completed",
				slog.String("task_type", string(d.Type)),
				slog.Duration("elapsed", elapsed),
			)
		}

		return value, err
	}
}
