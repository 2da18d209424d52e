package rabbit

import (
	"context"
	"sync"
)

// Queue is the bounded FIFO between the broker and the subscribers.
//
// The bridge is the only producer. Every subscriber takes from the same
// queue, so each message is handed to exactly one of them. Offer blocks while
// the queue is full.
type Queue struct {
	items    chan *Message
	done     chan struct{}
	shutOnce sync.Once
}

func newQueue(capacity int) *Queue {
	return &Queue{
		items: make(chan *Message, capacity),
		done:  make(chan struct{}),
	}
}

// Offer appends msg, blocking while the queue is full. It fails with
// ErrQueueShutdown once the queue is shut down, or with ctx.Err().
func (q *Queue) Offer(ctx context.Context, msg *Message) error {
	select {
	case <-q.done:
		return ErrQueueShutdown
	default:
	}

	select {
	case q.items <- msg:
		return nil
	case <-q.done:
		return ErrQueueShutdown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Take removes the oldest message, blocking while the queue is empty. Pending
// and later calls fail with ErrQueueShutdown once the queue is shut down.
func (q *Queue) Take(ctx context.Context) (*Message, error) {
	select {
	case <-q.done:
		return nil, ErrQueueShutdown
	default:
	}

	select {
	case msg := <-q.items:
		return msg, nil
	case <-q.done:
		return nil, ErrQueueShutdown
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of buffered messages.
func (q *Queue) Len() int {
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.items)
}

// IsShutdown reports whether shutdown has been called.
func (q *Queue) IsShutdown() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

// shutdown closes the queue and returns the messages still buffered. Only the
// first call drains; later calls return nil.
func (q *Queue) shutdown() []*Message {
	var leftovers []*Message
	q.shutOnce.Do(func() {
		close(q.done)
		for {
			select {
			case msg := <-q.items:
				leftovers = append(leftovers, msg)
			default:
				return
			}
		}
	})
	return leftovers
}
