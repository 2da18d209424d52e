package rabbit

import (
	"context"
	"fmt"
	"time"
)

// Start launches the connection supervisor and blocks until the first
// connection is established. It fails with a *ConnectionError after
// InitialConnectTimeout, or with ctx.Err() when ctx is done first. The
// supervisor keeps retrying in both cases until Shutdown is called.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.shutdownFlag.Load() {
		s.mu.Unlock()
		return ErrShutdown
	}
	if s.supervisorDone == nil {
		s.supervisorDone = make(chan struct{})
		go func(done chan struct{}) {
			defer close(done)
			s.supervise(s.lifetime)
		}(s.supervisorDone)
	}
	s.mu.Unlock()

	return s.waitForConnection(ctx)
}

func (s *Service) waitForConnection(ctx context.Context) error {
	timeout := time.NewTimer(s.connectTimeout)
	defer timeout.Stop()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if s.IsConnected() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to wait for initial connection: %w", ctx.Err())
		case <-timeout.C:
			return &ConnectionError{Op: "start", Message: "Timed out waiting for initial connection"}
		case <-ticker.C:
		}
	}
}

// IsConnected reports whether a broker link exists right now.
func (s *Service) IsConnected() bool {
	return s.current.Load() != nil
}

// State returns the current supervisor state.
func (s *Service) State() State {
	return State(s.state.Load())
}

// Messages returns the shared queue for callers that want to consume without
// a Subscription.
func (s *Service) Messages() *Queue {
	return s.queue
}

// Subscribe starts a subscriber bound to ctx. It fails right away with a
// *ConnectionError wrapping ErrNotConnected when no link exists; it does not
// wait for one.
//
// All subscriptions draw from the same queue, so each message reaches exactly
// one of them.
func (s *Service) Subscribe(ctx context.Context, handler Handler) (*Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("%w: handler must not be nil", ErrConfigurationError)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shutdownFlag.Load() {
		return nil, ErrShutdown
	}
	if !s.IsConnected() {
		return nil, &ConnectionError{Op: "subscribe", Message: "Not connected to broker", Cause: ErrNotConnected}
	}

	subCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.lifetime, cancel)

	sub := &Subscription{
		id:     newSubscriptionID(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.subscribers.Add(1)
	go func() {
		defer s.subscribers.Done()
		defer close(sub.done)
		defer stop()
		defer cancel()
		s.runSubscriber(subCtx, sub.id, handler)
	}()

	return sub, nil
}

// Shutdown shuts the queue down, stops the supervisor, closes the current
// link and waits for every subscriber to return. Buffered messages are
// dropped; the broker discards them together with the exclusive queue.
// If ctx ends before the supervisor stops, Shutdown returns the error and the
// supervisor still closes its link on the way out. Calling Shutdown again
// waits for whatever is left.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	first := !s.shutdownFlag.Swap(true)
	done := s.supervisorDone
	s.mu.Unlock()

	s.endLifetime()

	// Take callers are released even if the supervisor is slow to stop.
	if dropped := s.queue.shutdown(); len(dropped) > 0 {
		s.logger.WarnWithContext(ctx, "dropping buffered messages on shutdown", nil, map[string]interface{}{
			"count": len(dropped),
		})
	}

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			// The supervisor closes whatever link it still holds when it exits.
			return fmt.Errorf("failed to stop connection supervisor: %w", ctx.Err())
		}
	}

	// The supervisor has returned, so nothing else writes the state now.
	if current := s.current.Load(); current != nil {
		s.disconnect(current)
	}

	waitDone := make(chan struct{})
	go func() {
		s.subscribers.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-ctx.Done():
		return fmt.Errorf("failed to wait for subscribers: %w", ctx.Err())
	}

	s.setState(ctx, StateStopped)
	if first {
		s.logger.InfoWithContext(ctx, "rabbit service stopped", nil, nil)
	}
	return nil
}
