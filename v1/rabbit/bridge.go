package rabbit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// startBridge registers a manual-ack consumer on the link's queue.
func startBridge(l *link) (<-chan amqp.Delivery, error) {
	deliveries, err := l.ch.Consume(
		l.queueName,
		"flux-"+uuid.NewString(), // consumer tag
		false,                    // autoAck
		false,                    // exclusive
		false,                    // noLocal
		false,                    // noWait
		nil,                      // args
	)
	if err != nil {
		return nil, &ConsumeError{Message: fmt.Sprintf("failed to register consumer on %q", l.queueName), Cause: err}
	}
	return deliveries, nil
}

// runBridge moves deliveries into the service queue until ctx is done or the
// delivery stream closes. A closed stream while ctx is still live means the
// channel went away and is reported as ErrChannelClosed.
//
// A delivery that cannot be queued is nacked right away so the broker does
// not keep it unacknowledged.
func (s *Service) runBridge(ctx context.Context, queueName string, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("delivery stream of %q closed: %w", queueName, ErrChannelClosed)
			}

			msg := newMessage(d)
			s.observe("consume", queueName, 0, nil, int64(len(d.Body)), nil)

			if err := s.queue.Offer(ctx, msg); err != nil {
				_ = msg.Nack()
				s.observe("enqueue_failed", queueName, 0, err, int64(len(d.Body)), nil)
				s.logger.WarnWithContext(ctx, "failed to enqueue message, nacked", err, map[string]interface{}{
					"queue":        queueName,
					"delivery_tag": d.DeliveryTag,
				})
				// Offer only fails once the queue or the link is going away.
				return nil
			}
		}
	}
}

// parseContent decodes body as JSON, falling back to the raw string.
func parseContent(body []byte) interface{} {
	var content interface{}
	if err := json.Unmarshal(body, &content); err != nil {
		return string(body)
	}
	return content
}
