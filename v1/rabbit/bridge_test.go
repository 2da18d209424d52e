package rabbit

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContent(t *testing.T) {
	tests := []struct {
		name string
		body string
		want interface{}
	}{
		{name: "object", body: `{"a":1}`, want: map[string]interface{}{"a": float64(1)}},
		{name: "array", body: `[1,"x"]`, want: []interface{}{float64(1), "x"}},
		{name: "json string", body: `"quoted"`, want: "quoted"},
		{name: "number", body: `42`, want: float64(42)},
		{name: "null", body: `null`, want: nil},
		{name: "plain text", body: `hello`, want: "hello"},
		{name: "truncated json", body: `{"a":`, want: `{"a":`},
		{name: "empty", body: ``, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseContent([]byte(tt.body)))
		})
	}
}

func TestMessageSettlesOnce(t *testing.T) {
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery, 1)}

	acked := newMessage(amqp.Delivery{Acknowledger: ch, DeliveryTag: 1})
	require.NoError(t, acked.Ack())
	assert.ErrorIs(t, acked.Ack(), ErrAlreadySettled)
	assert.ErrorIs(t, acked.Nack(), ErrAlreadySettled)
	assert.True(t, acked.Settled())

	nacked := newMessage(amqp.Delivery{Acknowledger: ch, DeliveryTag: 2})
	require.NoError(t, nacked.Nack())
	assert.ErrorIs(t, nacked.Ack(), ErrAlreadySettled)

	assert.Equal(t, []uint64{1}, ch.ackedTags())
	assert.Equal(t, []nackRecord{{tag: 2, requeue: false}}, ch.nackedRecords())
}

func TestMessageSettleOnClosedChannel(t *testing.T) {
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery, 1)}
	ch.drop(nil)

	msg := newMessage(amqp.Delivery{Acknowledger: ch, DeliveryTag: 1})
	err := msg.Ack()
	require.Error(t, err)
	assert.ErrorIs(t, TranslateError(err), ErrConnectionClosed)
}

func TestRunBridgeNacksWhenQueueIsShutDown(t *testing.T) {
	svc, err := New(Config{URL: "amqp://localhost"})
	require.NoError(t, err)
	svc.queue.shutdown()

	ch := &fakeChannel{deliveries: make(chan amqp.Delivery, 1)}
	deliveries := make(chan amqp.Delivery, 1)
	deliveries <- amqp.Delivery{Acknowledger: ch, DeliveryTag: 9, Body: []byte(`{}`)}

	require.NoError(t, svc.runBridge(context.Background(), "amq.gen-1", deliveries))
	assert.Equal(t, []nackRecord{{tag: 9, requeue: false}}, ch.nackedRecords())
}

func TestRunBridgeReportsClosedStream(t *testing.T) {
	svc, err := New(Config{URL: "amqp://localhost"})
	require.NoError(t, err)

	deliveries := make(chan amqp.Delivery)
	close(deliveries)

	err = svc.runBridge(context.Background(), "amq.gen-1", deliveries)
	assert.ErrorIs(t, err, ErrChannelClosed)
}

func TestRunBridgeStopsOnCancel(t *testing.T) {
	svc, err := New(Config{URL: "amqp://localhost"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.runBridge(ctx, "amq.gen-1", make(chan amqp.Delivery))
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("bridge did not stop")
	}
}

func TestStartBridgeWrapsConsumeFailure(t *testing.T) {
	ch := &fakeChannel{consumeErr: errors.New("NOT_FOUND - no queue 'amq.gen-1'")}

	_, err := startBridge(&link{ch: ch, queueName: "amq.gen-1"})

	var consumeErr *ConsumeError
	require.ErrorAs(t, err, &consumeErr)
	assert.ErrorIs(t, err, ErrConsumeFailed)
	assert.True(t, IsRetryableError(err))
}
