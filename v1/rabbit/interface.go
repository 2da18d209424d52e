package rabbit

import (
	"context"
)

//go:generate mockgen -source=interface.go -destination=mock_logger.go -package=rabbit -exclude_interfaces=Client

// Logger is the subset of logger.Logger the service needs. It provides
// context-aware structured logging with optional error and field parameters.
type Logger interface {
	// DebugWithContext logs a debug message with trace context.
	DebugWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})

	// InfoWithContext logs an informational message with trace context.
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})

	// WarnWithContext logs a warning message with trace context.
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})

	// ErrorWithContext logs an error message with trace context.
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}

// Handler processes one message. Returning an error, or panicking, nacks the
// message. A nil return leaves settlement to the handler.
type Handler func(ctx context.Context, msg *Message) error

// Client is the surface the rest of the application consumes.
//
// This interface is implemented by the concrete *Service type.
type Client interface {
	// IsConnected reports whether a broker link currently exists.
	IsConnected() bool

	// Subscribe starts a subscriber that hands every message it takes from
	// the shared queue to handler.
	Subscribe(ctx context.Context, handler Handler) (*Subscription, error)

	// Messages gives direct access to the shared queue.
	Messages() *Queue

	// State returns the current connection state.
	State() State
}

var _ Client = (*Service)(nil)

type noopLogger struct{}

func (noopLogger) DebugWithContext(context.Context, string, error, ...map[string]interface{}) {}
func (noopLogger) InfoWithContext(context.Context, string, error, ...map[string]interface{})  {}
func (noopLogger) WarnWithContext(context.Context, string, error, ...map[string]interface{})  {}
func (noopLogger) ErrorWithContext(context.Context, string, error, ...map[string]interface{}) {}
