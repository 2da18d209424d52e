package rabbit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Errors reported by the service. They abstract away the underlying AMQP
// error details so callers can branch with errors.Is.
var (
	// ErrConnectionFailed is matched by every *ConnectionError
	ErrConnectionFailed = errors.New("connection failed")

	// ErrConnectionLost is returned when an established connection drops
	ErrConnectionLost = errors.New("connection lost")

	// ErrConnectionClosed is returned when the broker or the client closed the connection
	ErrConnectionClosed = errors.New("connection closed")

	// ErrChannelClosed is returned when the AMQP channel or its delivery stream closed
	ErrChannelClosed = errors.New("channel closed")

	// ErrAuthenticationFailed is returned when the broker refuses the credentials
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrAccessDenied is returned when the user may not access a resource
	ErrAccessDenied = errors.New("access denied")

	// ErrNotFound is returned for a missing exchange, queue or virtual host
	ErrNotFound = errors.New("not found")

	// ErrPreconditionFailed is returned when a declaration conflicts with an existing one
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrResourceLocked is returned when an exclusive resource is held by another connection
	ErrResourceLocked = errors.New("resource locked")

	// ErrProtocolError is returned for frame and command level failures
	ErrProtocolError = errors.New("protocol error")

	// ErrServerError is returned for broker-side failures
	ErrServerError = errors.New("server error")

	// ErrTimeout is returned when an operation times out
	ErrTimeout = errors.New("timeout")

	// ErrNetworkError is returned for network-related errors
	ErrNetworkError = errors.New("network error")

	// ErrTLSError is returned for TLS/SSL errors
	ErrTLSError = errors.New("TLS error")

	// ErrConsumeFailed is matched by every *ConsumeError
	ErrConsumeFailed = errors.New("consume failed")

	// ErrConfigurationError is returned for invalid configuration
	ErrConfigurationError = errors.New("configuration error")

	// ErrNotConnected is returned by Subscribe when no link to the broker exists
	ErrNotConnected = errors.New("not connected")

	// ErrQueueShutdown is returned by Queue operations after the service shut down
	ErrQueueShutdown = errors.New("queue shut down")

	// ErrAlreadySettled is returned when a message is acked or nacked a second time
	ErrAlreadySettled = errors.New("message already settled")

	// ErrCancelled is returned when an operation is cancelled
	ErrCancelled = errors.New("operation cancelled")

	// ErrShutdown is returned when the service is shutting down
	ErrShutdown = errors.New("shutdown")

	// ErrUnknownError is returned for unknown/unhandled errors
	ErrUnknownError = errors.New("unknown error")
)

// ConnectionError reports a failure to establish or use the broker link.
// Op names the step that failed (dial, channel, exchange_declare, ...).
type ConnectionError struct {
	Op      string
	Message string
	Cause   error
}

func (e *ConnectionError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// Is makes every ConnectionError match ErrConnectionFailed.
func (e *ConnectionError) Is(target error) bool { return target == ErrConnectionFailed }

// ConsumeError reports a failure to register the delivery consumer.
type ConsumeError struct {
	Message string
	Cause   error
}

func (e *ConsumeError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ConsumeError) Unwrap() error { return e.Cause }

// Is makes every ConsumeError match ErrConsumeFailed.
func (e *ConsumeError) Is(target error) bool { return target == ErrConsumeFailed }

// TranslateError converts AMQP and transport errors into the sentinel errors
// defined above. Errors that already match one of the service sentinels are
// mapped to that sentinel.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	for _, sentinel := range []error{ErrNotConnected, ErrQueueShutdown, ErrAlreadySettled, ErrShutdown, ErrConfigurationError} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}

	// amqp.ErrClosed is itself an *amqp.Error with a channel error code
	if errors.Is(err, amqp.ErrClosed) {
		return ErrConnectionClosed
	}

	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		return translateAMQPError(amqpErr)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, context.Canceled):
		return ErrCancelled
	}

	var syscallErr syscall.Errno
	if errors.As(err, &syscallErr) {
		return translateSyscallError(syscallErr)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTimeout
		}
		return ErrNetworkError
	}

	if translated := translateByErrorMessage(strings.ToLower(err.Error())); translated != nil {
		return translated
	}

	switch {
	case errors.Is(err, ErrConsumeFailed):
		return ErrConsumeFailed
	case errors.Is(err, ErrConnectionFailed):
		return ErrConnectionFailed
	case errors.Is(err, ErrChannelClosed):
		return ErrChannelClosed
	}
	return ErrUnknownError
}

// translateAMQPError maps AMQP reply codes to sentinel errors
func translateAMQPError(amqpErr *amqp.Error) error {
	switch amqpErr.Code {
	case amqp.ConnectionForced:
		return ErrConnectionClosed
	case amqp.AccessRefused:
		if strings.Contains(strings.ToLower(amqpErr.Reason), "login") {
			return ErrAuthenticationFailed
		}
		return ErrAccessDenied
	case amqp.NotFound, amqp.InvalidPath:
		return ErrNotFound
	case amqp.ResourceLocked:
		return ErrResourceLocked
	case amqp.PreconditionFailed:
		return ErrPreconditionFailed
	case amqp.ChannelError:
		return ErrChannelClosed
	case amqp.FrameError, amqp.SyntaxError, amqp.CommandInvalid, amqp.UnexpectedFrame, amqp.NotImplemented, amqp.NotAllowed:
		return ErrProtocolError
	case amqp.InternalError, amqp.ResourceError:
		return ErrServerError
	}

	if translated := translateByErrorMessage(strings.ToLower(amqpErr.Reason)); translated != nil {
		return translated
	}
	return ErrUnknownError
}

// translateSyscallError maps syscall errors to sentinel errors
func translateSyscallError(syscallErr syscall.Errno) error {
	switch syscallErr {
	case syscall.ECONNREFUSED:
		return ErrConnectionFailed
	case syscall.ECONNRESET, syscall.ECONNABORTED, syscall.EPIPE, syscall.ENOTCONN:
		return ErrConnectionLost
	case syscall.ETIMEDOUT:
		return ErrTimeout
	case syscall.EACCES, syscall.EPERM:
		return ErrAccessDenied
	default:
		return ErrNetworkError
	}
}

// translateByErrorMessage is the fallback for errors that carry no type information.
func translateByErrorMessage(errMsg string) error {
	switch {
	case strings.Contains(errMsg, "connection refused"):
		return ErrConnectionFailed
	case strings.Contains(errMsg, "connection reset"), strings.Contains(errMsg, "broken pipe"):
		return ErrConnectionLost
	case strings.Contains(errMsg, "login refused"), strings.Contains(errMsg, "authentication failed"):
		return ErrAuthenticationFailed
	case strings.Contains(errMsg, "access refused"):
		return ErrAccessDenied
	case strings.Contains(errMsg, "tls"), strings.Contains(errMsg, "x509"), strings.Contains(errMsg, "certificate"):
		return ErrTLSError
	case strings.Contains(errMsg, "i/o timeout"), strings.Contains(errMsg, "deadline exceeded"):
		return ErrTimeout
	case strings.Contains(errMsg, "no such host"), strings.Contains(errMsg, "network is unreachable"):
		return ErrNetworkError
	}
	return nil
}

// errorKind returns a short, low-cardinality label for err, suitable for log
// fields and metric labels.
func errorKind(err error) string {
	if err == nil {
		return ""
	}
	return strings.ReplaceAll(TranslateError(err).Error(), " ", "_")
}

// IsRetryableError reports whether err is expected to heal once the
// connection is re-established.
func IsRetryableError(err error) bool {
	switch translated := TranslateError(err); {
	case errors.Is(translated, ErrConnectionFailed),
		errors.Is(translated, ErrConnectionLost),
		errors.Is(translated, ErrConnectionClosed),
		errors.Is(translated, ErrChannelClosed),
		errors.Is(translated, ErrResourceLocked),
		errors.Is(translated, ErrServerError),
		errors.Is(translated, ErrTimeout),
		errors.Is(translated, ErrNetworkError),
		errors.Is(translated, ErrConsumeFailed):
		return true
	default:
		return false
	}
}
