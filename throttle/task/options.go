package task

import "time"

// Options configures a task definition.
type Options struct {
	// Execution selects the pacing class. Defaults to ExecNonBlocking.
	Execution ExecutionType

	// Timeout is the per-type default used by timeout-bounded execution.
	// Zero means the engine-wide default applies.
	Timeout time.Duration
}

// Option mutates task Options.
type Option func(*Options)

// DefaultOptions returns the default task options.
func DefaultOptions() Options {
	return Options{
		Execution: ExecNonBlocking,
	}
}

// WithExecution sets the pacing class.
func WithExecution(e ExecutionType) Option {
	return func(o *Options) { o.Execution = e }
}

// WithTimeout sets the per-type default timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}
