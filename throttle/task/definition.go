package task

import "context"

// Definition is a typed task definition binding a task type to the
// operation that turns parameters into a result through the remote API.
// P is the parameter type, R the result type.
type Definition[P, R any] struct {
	// Type is the unique identifier for this task type.
	Type TypeID

	// Run performs one logical remote operation. It may fan out into
	// several underlying network requests; implementations report quota
	// telemetry through the adapter package's Record helpers.
	Run func(ctx context.Context, params P) (R, error)

	// Opts configures the pacing class and the per-type timeout.
	Opts Options
}

// NewDefinition creates a typed task definition.
func NewDefinition[P, R any](typeID TypeID, run func(ctx context.Context, params P) (R, error), opts ...Option) *Definition[P, R] {
	def := &Definition[P, R]{
		Type: typeID,
		Run:  run,
		Opts: DefaultOptions(),
	}
	for _, opt := range opts {
		opt(&def.Opts)
	}
	return def
}

// Runner is the type-erased form of a Definition's Run function.
// The typed Definition[P, R] is converted to a Runner at registration time
// by closing over the parameter type — the variant carries its own types,
// so no unchecked casts happen at lookup time.
type Runner func(ctx context.Context, params any) (any, error)
