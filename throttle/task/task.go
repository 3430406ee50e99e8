// Package task defines task types for the throttling engine: typed
// definitions, the type-erased runner form they are registered as, and the
// per-type FIFO request queue.
package task

import "time"

// TypeID identifies one class of remote operation (e.g. "create-vm",
// "list-vms"). It is caller-chosen at registration and must be unique
// within an engine instance.
type TypeID string

// ExecutionType selects the pacing class for a task type.
type ExecutionType int

const (
	// ExecBlocking marks latency-sensitive tasks that run as soon as they
	// are eligible, paced only by the scheduling tick.
	ExecBlocking ExecutionType = iota

	// ExecNonBlocking marks throughput-oriented tasks that may be delayed
	// further as the quota window depletes.
	ExecNonBlocking
)

// String returns the execution type name.
func (e ExecutionType) String() string {
	switch e {
	case ExecBlocking:
		return "blocking"
	case ExecNonBlocking:
		return "non-blocking"
	default:
		return "unknown"
	}
}

// Descriptor is a read-only snapshot of a registered task type,
// exposed for diagnostics and status reporting.
type Descriptor struct {
	Type      TypeID
	Execution ExecutionType
	Timeout   time.Duration
}
