package rabbit

import (
	"time"

	"github.com/Aleph-Alpha/flux/v1/observability"
)

// observe notifies the observer about an operation if one is configured.
func (s *Service) observe(operation, resource string, duration time.Duration, err error, size int64, metadata map[string]interface{}) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveOperation(observability.OperationContext{
		Component: "rabbit",
		Operation: operation,
		Resource:  resource,
		Duration:  duration,
		Error:     err,
		Size:      size,
		Metadata:  metadata,
	})
}
