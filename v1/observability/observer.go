// Package observability defines the hook through which the flux packages report
// the operations they perform, so that metrics and tracing backends can be
// plugged in without the clients depending on them.
package observability

import "time"

// Observer receives a notification for every operation a client performs.
// Implementations must be safe for concurrent use and must not block.
type Observer interface {
	ObserveOperation(ctx OperationContext)
}

// OperationContext describes one completed operation.
type OperationContext struct {
	// Component is the reporting package, e.g. "rabbit"
	Component string

	// Operation is the verb, e.g. "connect", "consume", "handle"
	Operation string

	// Resource is the primary object operated on (exchange, queue name, ...)
	Resource string

	// SubResource carries secondary context such as a routing key
	SubResource string

	// Duration is how long the operation took
	Duration time.Duration

	// Error is the failure, nil on success
	Error error

	// Size is the payload size in bytes, 0 when not applicable
	Size int64

	// Metadata holds additional low-cardinality attributes
	Metadata map[string]interface{}
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(ctx OperationContext)

// ObserveOperation calls f(ctx).
func (f ObserverFunc) ObserveOperation(ctx OperationContext) {
	f(ctx)
}
