package rabbit

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// disconnectSignal is resolved at most once, by whichever of the watcher or
// the bridge first notices that the link is gone.
type disconnectSignal struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newDisconnectSignal() *disconnectSignal {
	return &disconnectSignal{done: make(chan struct{})}
}

// fire resolves the signal with cause. It reports whether this call resolved it.
func (s *disconnectSignal) fire(cause error) bool {
	fired := false
	s.once.Do(func() {
		s.err = cause
		close(s.done)
		fired = true
	})
	return fired
}

// Done is closed once the signal is resolved.
func (s *disconnectSignal) Done() <-chan struct{} {
	return s.done
}

// Err returns the cause. Only valid after Done is closed.
func (s *disconnectSignal) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// watchConnection resolves signal on the first close notification of either
// the connection or its channel. It returns after that or when ctx is done.
func watchConnection(ctx context.Context, l *link, signal *disconnectSignal) {
	connClosed := l.conn.NotifyClose(make(chan *amqp.Error, 1))
	chClosed := l.ch.NotifyClose(make(chan *amqp.Error, 1))

	select {
	case <-ctx.Done():
	case amqpErr := <-connClosed:
		signal.fire(closeCause(amqpErr, ErrConnectionClosed))
	case amqpErr := <-chClosed:
		signal.fire(closeCause(amqpErr, ErrChannelClosed))
	}
}

// closeCause turns a close notification into an error. A nil notification
// means a graceful close.
func closeCause(amqpErr *amqp.Error, graceful error) error {
	if amqpErr == nil {
		return graceful
	}
	return amqpErr
}
