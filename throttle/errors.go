package throttle

import "errors"

var (
	// Registration errors.
	ErrAlreadyRegistered = errors.New("throttle: task type already registered")
	ErrUnknownTask       = errors.New("throttle: unknown task type")

	// Execution errors.
	ErrTimeout = errors.New("throttle: task execution timed out")
	ErrStopped = errors.New("throttle: throttler is stopped")
)
