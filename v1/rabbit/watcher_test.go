package rabbit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisconnectSignalFiresOnce(t *testing.T) {
	signal := newDisconnectSignal()
	assert.Nil(t, signal.Err())

	first := errors.New("first")
	var wg sync.WaitGroup
	results := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i == 0 {
				results <- signal.fire(first)
				return
			}
			<-signal.Done()
			results <- signal.fire(errors.New("later"))
		}(i)
	}
	wg.Wait()
	close(results)

	fired := 0
	for r := range results {
		if r {
			fired++
		}
	}
	assert.Equal(t, 1, fired)
	assert.Equal(t, first, signal.Err())
}

func newWatchedLink(t *testing.T) (*link, *fakeConn) {
	t.Helper()
	conn := &fakeConn{queueName: "amq.gen-1"}
	ch, err := conn.Channel()
	require.NoError(t, err)
	return &link{conn: conn, ch: ch, queueName: "amq.gen-1"}, conn
}

func TestWatchConnectionResolvesOnConnectionError(t *testing.T) {
	l, conn := newWatchedLink(t)
	signal := newDisconnectSignal()

	done := make(chan struct{})
	go func() {
		defer close(done)
		watchConnection(context.Background(), l, signal)
	}()

	// Give the watcher time to register before the close.
	time.Sleep(10 * time.Millisecond)
	cause := &amqp.Error{Code: amqp.ConnectionForced, Reason: "CONNECTION_FORCED"}
	conn.drop(cause)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not return")
	}
	<-signal.Done()
	assert.ErrorIs(t, TranslateError(signal.Err()), ErrConnectionClosed)
}

func TestWatchConnectionResolvesOnGracefulChannelClose(t *testing.T) {
	l, conn := newWatchedLink(t)
	signal := newDisconnectSignal()

	done := make(chan struct{})
	go func() {
		defer close(done)
		watchConnection(context.Background(), l, signal)
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, conn.channel().Close())

	<-done
	assert.ErrorIs(t, signal.Err(), ErrChannelClosed)
}

func TestWatchConnectionAlreadyClosed(t *testing.T) {
	l, conn := newWatchedLink(t)
	conn.drop(nil)

	signal := newDisconnectSignal()
	watchConnection(context.Background(), l, signal)

	select {
	case <-signal.Done():
	default:
		t.Fatal("signal not resolved for a closed link")
	}
}

func TestWatchConnectionStopsOnCancel(t *testing.T) {
	l, _ := newWatchedLink(t)
	signal := newDisconnectSignal()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	watchConnection(ctx, l, signal)

	select {
	case <-signal.Done():
		t.Fatal("signal resolved without a close")
	default:
	}
}
