package throttle

import "time"

// Config holds configuration for the Throttler.
type Config struct {
	// TickInterval is how often the scheduling tick runs. Each tick
	// dispatches at most one request system-wide.
	TickInterval time.Duration

	// TaskTimeout is the default timeout applied by ExecuteWithTimeout
	// when the task type did not set its own.
	TaskTimeout time.Duration

	// WindowLength is the remote API's rolling quota window length.
	WindowLength time.Duration

	// InitialReads is the assumed quota allowance before the remote API
	// reports an explicit value.
	InitialReads int64

	// BlockingDelay is the minimum interval between dispatches of
	// blocking task types. Zero means tick-paced only.
	BlockingDelay time.Duration

	// MaxDelay caps the adaptive pacing delay for non-blocking task types.
	MaxDelay time.Duration

	// DispatchRate is an optional hard ceiling on dispatches per second,
	// applied on top of quota pacing. Zero disables the ceiling.
	DispatchRate float64

	// DispatchBurst is the burst size for the dispatch ceiling.
	// Defaults to 1 if DispatchRate is set but DispatchBurst is zero.
	DispatchBurst int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:  500 * time.Millisecond,
		TaskTimeout:   15 * time.Second,
		WindowLength:  time.Hour,
		InitialReads:  12000,
		BlockingDelay: 0,
		MaxDelay:      5 * time.Minute,
	}
}
