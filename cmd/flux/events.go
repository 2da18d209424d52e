package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Aleph-Alpha/flux/v1/logger"
	"github.com/Aleph-Alpha/flux/v1/metrics"
	"github.com/Aleph-Alpha/flux/v1/rabbit"
	"github.com/Aleph-Alpha/flux/v1/tracer"
)

// delivery is the part of *rabbit.Message the event logger reads.
type delivery interface {
	Body() []byte
	MessageID() string
	Redelivered() bool
	Ack() error
}

// eventLogger logs, counts and acks every event taken from the stream.
type eventLogger struct {
	log    logger.Logger
	tracer *tracer.Tracer
	queue  *rabbit.Queue

	received *prometheus.CounterVec
	size     *prometheus.HistogramVec
	depth    *prometheus.GaugeVec
}

func newEventLogger(log logger.Logger, tr *tracer.Tracer, m metrics.MetricsCollector, client rabbit.Client) *eventLogger {
	return &eventLogger{
		log:      log,
		tracer:   tr,
		queue:    client.Messages(),
		received: m.CreateCounter("events_received_total", "Events taken from the event stream by kind and outcome", []string{"kind", "status"}),
		size:     m.CreateHistogram("event_size_bytes", "Payload size of received events", []string{"kind"}, prometheus.ExponentialBuckets(64, 4, 8)),
		depth:    m.CreateGauge("event_queue_depth", "Messages buffered between the broker and the subscribers", nil),
	}
}

func (e *eventLogger) handle(ctx context.Context, msg *rabbit.Message) error {
	return e.record(ctx, msg.Content, msg)
}

func (e *eventLogger) record(ctx context.Context, content interface{}, d delivery) error {
	ctx, span := e.tracer.StartSpan(ctx, "flux.log_event")
	defer span.End()

	kind := eventKind(content)
	size := len(d.Body())

	e.tracer.SetAttributes(span, map[string]interface{}{
		"flux.event.kind":        kind,
		"flux.event.bytes":       size,
		"flux.event.redelivered": d.Redelivered(),
		"messaging.message.id":   d.MessageID(),
	})
	e.size.WithLabelValues(kind).Observe(float64(size))
	e.depth.WithLabelValues().Set(float64(e.queue.Len()))

	e.log.InfoWithContext(ctx, "event received", nil, map[string]interface{}{
		"kind":        kind,
		"message_id":  d.MessageID(),
		"redelivered": d.Redelivered(),
		"bytes":       size,
		"content":     content,
	})

	if err := d.Ack(); err != nil {
		e.tracer.RecordErrorOnSpan(span, err)
		e.received.WithLabelValues(kind, "ack_failed").Inc()
		return fmt.Errorf("failed to ack event: %w", err)
	}
	e.received.WithLabelValues(kind, "acked").Inc()
	return nil
}

// eventKind names the event for labels: the "event" field of a JSON object,
// "object" for other objects and "text" for non-JSON payloads.
func eventKind(content interface{}) string {
	switch c := content.(type) {
	case map[string]interface{}:
		if name, ok := c["event"].(string); ok && name != "" {
			return name
		}
		return "object"
	case string:
		return "text"
	default:
		return "other"
	}
}
