// Package memory provides an in-process stub queue for local runs and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/cidades-pipeline/internal/crawler"
)

// ErrClosed is returned once the queue has been closed.
var ErrClosed = errors.New("queue closed")

// Queue is a bounded in-memory queue with context-aware operations.
// The message channel is never closed; done signals shutdown so a blocked
// Enqueue can observe Close without holding a lock across the send.
type Queue struct {
	ch        chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch:   make(chan []byte, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue pushes a message into the queue or returns if the context ends or
// the queue closes.
func (q *Queue) Enqueue(ctx context.Context, body []byte) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	msg := append([]byte(nil), body...)
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case <-q.done:
		return ErrClosed
	case q.ch <- msg:
		return nil
	}
}

// Dequeue pops the next message, respecting context cancellation. Buffered
// messages are still handed out after Close; ErrClosed follows once drained.
func (q *Queue) Dequeue(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case msg := <-q.ch:
		return msg, nil
	case <-q.done:
		select {
		case msg := <-q.ch:
			return msg, nil
		default:
			return nil, ErrClosed
		}
	}
}

// Receive hands each message to handler until the context ends or the queue
// closes. Messages whose handler fails are dropped, not redelivered.
func (q *Queue) Receive(ctx context.Context, handler crawler.MessageHandler) error {
	for {
		msg, err := q.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}
		_ = handler(ctx, msg)
	}
}

// Len reports the number of buffered messages.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops the queue. Pending and future Enqueue calls return ErrClosed.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}
