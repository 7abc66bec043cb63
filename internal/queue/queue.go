package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Enqueue and Consume once the queue has been closed.
var ErrClosed = errors.New("queue closed")

// Handler processes one campaign id taken off the queue.
type Handler func(ctx context.Context, campaignID int64) error

// Queue carries "start campaign" requests to the dispatch worker.
type Queue interface {
	// Enqueue never blocks on the consumer. Duplicate ids are allowed.
	Enqueue(ctx context.Context, campaignID int64) error
	// Consume hands items to handler one at a time until ctx is cancelled or the
	// queue is closed. Handler errors are not retried and do not stop consumption.
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

// InMemoryQueue is an unbounded FIFO of campaign ids.
type InMemoryQueue struct {
	mu     sync.Mutex
	items  []int64
	closed bool

	// wake has capacity 1 and is signalled whenever an item is added or the queue closes.
	wake chan struct{}
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{wake: make(chan struct{}, 1)}
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, campaignID int64) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, campaignID)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Len returns the number of ids waiting to be consumed.
func (q *InMemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *InMemoryQueue) Consume(ctx context.Context, handler Handler) error {
	for {
		id, err := q.next(ctx)
		if err != nil {
			return err
		}
		// The handler owns error reporting.
		_ = handler(ctx, id)
	}
}

// next blocks until an item is available. Cancellation wins over pending items so a
// stopping consumer does not pick up new work.
func (q *InMemoryQueue) next(ctx context.Context) (int64, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return 0, ErrClosed
		}
		if len(q.items) > 0 {
			id := q.items[0]
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return id, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-q.wake:
		}
	}
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.items = nil
	q.mu.Unlock()

	q.signal()
	return nil
}

func (q *InMemoryQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

var _ Queue = (*InMemoryQueue)(nil)
