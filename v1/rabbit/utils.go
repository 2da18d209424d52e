package rabbit

import (
	"fmt"
	"sync/atomic"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Message is one delivery from the event exchange.
//
// Content holds the decoded JSON payload (map[string]interface{}, []interface{},
// string, float64, bool or nil) or, when the body is not valid JSON, the raw
// body as a string. A message is settled at most once: the first Ack or Nack
// goes to the broker, later calls return ErrAlreadySettled.
type Message struct {
	Content interface{}

	delivery amqp.Delivery
	settled  atomic.Bool
}

func newMessage(d amqp.Delivery) *Message {
	return &Message{
		Content:  parseContent(d.Body),
		delivery: d,
	}
}

// Ack acknowledges the delivery.
func (m *Message) Ack() error {
	if !m.settled.CompareAndSwap(false, true) {
		return ErrAlreadySettled
	}
	if err := m.delivery.Ack(false); err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	return nil
}

// Nack rejects the delivery without requeueing it. No dead-letter exchange
// is declared, so the broker discards it.
func (m *Message) Nack() error {
	if !m.settled.CompareAndSwap(false, true) {
		return ErrAlreadySettled
	}
	if err := m.delivery.Nack(false, false); err != nil {
		return fmt.Errorf("failed to nack message: %w", err)
	}
	return nil
}

// Settled reports whether Ack or Nack has been called.
func (m *Message) Settled() bool {
	return m.settled.Load()
}

// Body returns the raw payload.
func (m *Message) Body() []byte {
	return m.delivery.Body
}

// Headers returns the AMQP headers of the delivery.
func (m *Message) Headers() amqp.Table {
	return m.delivery.Headers
}

// MessageID returns the publisher-assigned message id, if any.
func (m *Message) MessageID() string {
	return m.delivery.MessageId
}

// Redelivered reports whether the broker delivered this message before.
func (m *Message) Redelivered() bool {
	return m.delivery.Redelivered
}

// headerCarrier adapts AMQP headers to propagation.TextMapCarrier.
type headerCarrier amqp.Table

func (c headerCarrier) Get(key string) string {
	switch v := c[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func (c headerCarrier) Set(key, value string) {
	c[key] = value
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
