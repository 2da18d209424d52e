package rabbit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Subscription is the handle of one running subscriber.
type Subscription struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

// ID identifies the subscription in logs.
func (s *Subscription) ID() string { return s.id }

// Cancel stops the subscriber. A handler call in progress is allowed to finish.
func (s *Subscription) Cancel() { s.cancel() }

// Done is closed once the subscriber has stopped.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// runSubscriber hands messages from the shared queue to handler until ctx is
// done or the queue shuts down.
func (s *Service) runSubscriber(ctx context.Context, id string, handler Handler) {
	fields := map[string]interface{}{"subscription": id}
	s.logger.DebugWithContext(ctx, "subscriber started", nil, fields)

	for {
		msg, err := s.queue.Take(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueShutdown) {
				s.logger.DebugWithContext(ctx, "subscriber stopped, queue shut down", nil, fields)
			} else {
				s.logger.DebugWithContext(ctx, "subscriber stopped", err, fields)
			}
			return
		}
		s.handle(ctx, id, handler, msg)
	}
}

// handle runs handler inside a consumer span continuing the publisher's trace.
// A failed or panicking handler gets the message nacked.
func (s *Service) handle(ctx context.Context, id string, handler Handler, msg *Message) {
	if headers := msg.Headers(); headers != nil {
		ctx = s.propagator.Extract(ctx, headerCarrier(headers))
	}

	ctx, span := s.tracer.Start(ctx, "rabbit.handle",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination.name", s.cfg.ExchangeName),
			attribute.String("messaging.message.id", msg.MessageID()),
			attribute.Int("messaging.message.body.size", len(msg.Body())),
			attribute.String("flux.subscription", id),
		),
	)
	defer span.End()

	start := time.Now()
	err := invokeHandler(ctx, handler, msg)
	s.observe("handle", s.cfg.ExchangeName, time.Since(start), err, int64(len(msg.Body())), nil)
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.logger.ErrorWithContext(ctx, "message handler failed, dropping message", err, map[string]interface{}{
		"subscription": id,
		"message_id":   msg.MessageID(),
	})

	if nackErr := msg.Nack(); nackErr != nil && !errors.Is(nackErr, ErrAlreadySettled) {
		s.logger.WarnWithContext(ctx, "failed to nack message", nackErr, map[string]interface{}{
			"subscription": id,
		})
	}
}

// invokeHandler calls handler, turning a panic into an error.
func invokeHandler(ctx context.Context, handler Handler, msg *Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, msg)
}

func newSubscriptionID() string {
	return uuid.NewString()
}
