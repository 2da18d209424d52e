package metrics

import (
	"github.com/Aleph-Alpha/flux/v1/observability"
)

// Connection states reported by components through the "state" operation.
// Only these values are exported as gauge labels.
var knownStates = []string{"idle", "connecting", "connected", "disconnecting", "stopped"}

// ObserveOperation implements observability.Observer.
//
// Every operation increments operations_total and, when it carries a
// duration or a size, the duration histogram and byte counter. Operations
// named "state" switch the connection_state gauge to Metadata["state"].
func (m *Metrics) ObserveOperation(op observability.OperationContext) {
	if op.Operation == "state" {
		if state, ok := op.Metadata["state"].(string); ok {
			m.SetConnectionState(op.Component, state)
		}
		return
	}

	status := "success"
	if op.Error != nil {
		status = "error"
	}
	m.operationsTotal.WithLabelValues(op.Component, op.Operation, status).Inc()

	if op.Duration > 0 {
		m.operationDuration.WithLabelValues(op.Component, op.Operation).Observe(op.Duration.Seconds())
	}
	if op.Size > 0 {
		m.operationBytes.WithLabelValues(op.Component, op.Operation).Add(float64(op.Size))
	}
}

// SetConnectionState sets the gauge of state to 1 and every other known state to 0.
func (m *Metrics) SetConnectionState(component, state string) {
	for _, s := range knownStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.connectionState.WithLabelValues(component, s).Set(v)
	}
}

// NewObserver exposes m as an observability.Observer for fx wiring.
func NewObserver(m *Metrics) observability.Observer {
	return m
}
