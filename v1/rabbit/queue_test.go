package rabbit

import (
	"context"
	"fmt"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessage(body string) *Message {
	return newMessage(amqp.Delivery{Body: []byte(body)})
}

func TestQueueIsFIFO(t *testing.T) {
	q := newQueue(3)
	ctx := context.Background()

	for _, body := range []string{"a", "b", "c"} {
		require.NoError(t, q.Offer(ctx, testMessage(body)))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		msg, err := q.Take(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, msg.Content)
	}
}

func TestQueueBackpressure(t *testing.T) {
	q := newQueue(QueueCapacity)
	ctx := context.Background()

	for i := 0; i < QueueCapacity; i++ {
		require.NoError(t, q.Offer(ctx, testMessage(fmt.Sprint(i))))
	}

	offered := make(chan error, 1)
	go func() {
		offered <- q.Offer(ctx, testMessage("overflow"))
	}()

	select {
	case err := <-offered:
		t.Fatalf("offer to a full queue returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, QueueCapacity, q.Len())

	first, err := q.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(0), first.Content)

	select {
	case err := <-offered:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("offer did not complete after a take")
	}
	assert.Equal(t, QueueCapacity, q.Len())

	// Nothing was dropped: 1..999 then the overflow message.
	for i := 1; i < QueueCapacity; i++ {
		msg, err := q.Take(ctx)
		require.NoError(t, err)
		require.Equal(t, float64(i), msg.Content)
	}
	last, err := q.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, "overflow", last.Content)
}

func TestQueueShutdownUnblocksTake(t *testing.T) {
	q := newQueue(1)

	taken := make(chan error, 1)
	go func() {
		_, err := q.Take(context.Background())
		taken <- err
	}()

	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, q.shutdown())

	select {
	case err := <-taken:
		assert.ErrorIs(t, err, ErrQueueShutdown)
	case <-time.After(time.Second):
		t.Fatal("take did not unblock on shutdown")
	}

	_, err := q.Take(context.Background())
	assert.ErrorIs(t, err, ErrQueueShutdown)
	assert.ErrorIs(t, q.Offer(context.Background(), testMessage("late")), ErrQueueShutdown)
	assert.True(t, q.IsShutdown())
}

func TestQueueShutdownUnblocksOffer(t *testing.T) {
	q := newQueue(1)
	require.NoError(t, q.Offer(context.Background(), testMessage("a")))

	offered := make(chan error, 1)
	go func() {
		offered <- q.Offer(context.Background(), testMessage("b"))
	}()

	time.Sleep(10 * time.Millisecond)
	leftovers := q.shutdown()

	select {
	case err := <-offered:
		assert.ErrorIs(t, err, ErrQueueShutdown)
	case <-time.After(time.Second):
		t.Fatal("offer did not unblock on shutdown")
	}
	require.Len(t, leftovers, 1)
	assert.Equal(t, "a", leftovers[0].Content)
	assert.Nil(t, q.shutdown())
}

func TestQueueHonoursContext(t *testing.T) {
	q := newQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Take(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, q.Offer(context.Background(), testMessage("a")))
	assert.ErrorIs(t, q.Offer(ctx, testMessage("b")), context.DeadlineExceeded)
	assert.Equal(t, 1, q.Cap())
}
