package rabbit

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

// State is the position of the connection supervisor in its loop.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// supervise runs the reconnect loop until ctx is done or the shutdown flag
// is set:
//
//	Idle -> Connecting -> Connected -> Disconnecting -> Idle
//
// A failed retry cycle goes back to Idle after the policy's cool-down.
func (s *Service) supervise(ctx context.Context) {
	defer s.setState(ctx, StateStopped)

	for {
		s.setState(ctx, StateIdle)
		if s.shutdownFlag.Load() || ctx.Err() != nil {
			return
		}

		s.setState(ctx, StateConnecting)
		current, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.ErrorWithContext(ctx, "all immediate connection attempts failed, cooling down", err, map[string]interface{}{
				"attempts":   s.policy.MaxImmediateAttempts,
				"wait":       s.policy.ExhaustedWaitDelay.String(),
				"error_kind": errorKind(err),
			})
			if s.sleep(ctx, s.policy.ExhaustedWaitDelay) != nil {
				return
			}
			continue
		}

		s.current.Store(current)
		s.setState(ctx, StateConnected)
		s.logger.InfoWithContext(ctx, "connected to broker", nil, map[string]interface{}{
			"exchange": s.cfg.ExchangeName,
			"queue":    current.link.queueName,
		})

		select {
		case <-current.signal.Done():
			cause := current.signal.Err()
			s.logger.WarnWithContext(ctx, "broker link lost", cause, map[string]interface{}{
				"queue":      current.link.queueName,
				"error_kind": errorKind(cause),
			})
		case <-ctx.Done():
			s.disconnect(current)
			return
		}

		s.setState(ctx, StateDisconnecting)
		s.disconnect(current)

		if s.sleep(ctx, ReconnectDelay) != nil {
			return
		}
	}
}

// connect runs one retry cycle. On success the bridge and the watcher are
// already running under a context derived from ctx.
func (s *Service) connect(ctx context.Context) (*connectionState, error) {
	var (
		attempt    int
		l          *link
		deliveries <-chan amqp.Delivery
	)

	operation := func() error {
		attempt++
		start := time.Now()

		candidate, err := dialLink(ctx, s.dial, s.cfg, s.tlsConfig)
		if err == nil {
			deliveries, err = startBridge(candidate)
			if err != nil {
				candidate.close()
			}
		}

		s.observe("connect", s.cfg.ExchangeName, time.Since(start), err, 0, map[string]interface{}{
			"attempt": attempt,
		})
		if err != nil {
			s.logger.WarnWithContext(ctx, "connection attempt failed", err, map[string]interface{}{
				"attempt":    attempt,
				"error_kind": errorKind(err),
			})
			return err
		}

		l = candidate
		return nil
	}

	notify := func(err error, next time.Duration) {
		s.logger.InfoWithContext(ctx, "retrying broker connection", nil, map[string]interface{}{
			"attempt": attempt,
			"delay":   next.String(),
		})
	}

	b := backoff.WithContext(s.policy.backOff(), ctx)
	if err := backoff.RetryNotifyWithTimer(operation, b, notify, s.newTimer()); err != nil {
		return nil, err
	}

	// A dial that finished after shutdown began must not be published.
	if err := ctx.Err(); err != nil {
		l.close()
		return nil, err
	}

	connCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(connCtx)
	signal := newDisconnectSignal()

	group.Go(func() error {
		watchConnection(groupCtx, l, signal)
		return nil
	})
	group.Go(func() error {
		err := s.runBridge(groupCtx, l.queueName, deliveries)
		if err != nil {
			signal.fire(err)
		}
		return err
	})

	return &connectionState{
		link:   l,
		cancel: cancel,
		group:  group,
		signal: signal,
	}, nil
}

// disconnect stops the tasks of current, closes its link and clears the
// published state. Errors are ignored.
func (s *Service) disconnect(current *connectionState) {
	if current == nil {
		return
	}
	start := time.Now()

	current.cancel()
	_ = current.group.Wait()
	current.link.close()
	s.current.CompareAndSwap(current, nil)

	s.observe("disconnect", s.cfg.ExchangeName, time.Since(start), nil, 0, nil)
}

// setState records a transition and reports it.
func (s *Service) setState(ctx context.Context, next State) {
	prev := State(s.state.Swap(int32(next)))
	if prev == next {
		return
	}
	s.logger.DebugWithContext(ctx, "connection state changed", nil, map[string]interface{}{
		"from": prev.String(),
		"to":   next.String(),
	})
	s.observe("state", s.cfg.ExchangeName, 0, nil, 0, map[string]interface{}{
		"state": next.String(),
	})
}
