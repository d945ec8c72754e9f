// Package queue buffers accepted match submissions until a worker rates them.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/vibo/internal/domain/model"
	"github.com/okian/vibo/pkg/metrics"
)

const defaultQueueCapacity = 10_000

// Item is one match waiting to be rated.
type Item struct {
	// Key is the client idempotency key the match was accepted under, if any.
	Key        string
	Match      model.Match
	EnqueuedAt time.Time
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an item. It never blocks: ErrFull is returned when the
	// queue is at capacity and ErrClosed after Close.
	Enqueue(ctx context.Context, it Item) error

	// Dequeue returns the channel items are delivered on. The channel is
	// closed by Close once the remaining items have been received.
	Dequeue(ctx context.Context) <-chan Item

	// Len returns the current number of queued items.
	Len(ctx context.Context) int

	// Cap returns the configured capacity.
	Cap() int

	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	items    chan Item
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a queue with the given options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan Item, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0, q.capacity)
	return q
}

// Enqueue adds an item to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, it Item) error { //nolint:gocritic // hugeParam: items travel by value
	// Close takes the write lock, so the send below never hits a closed channel.
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError("context_cancelled")
		return err
	}
	if it.EnqueuedAt.IsZero() {
		it.EnqueuedAt = time.Now()
	}

	select {
	case q.items <- it:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.items), q.capacity)
		return nil
	default:
		metrics.RecordQueueEnqueueError("full")
		metrics.RecordErrorByComponent("queue", "capacity_exceeded")
		return ErrFull
	}
}

// Dequeue returns the shared delivery channel. Consumers record the dequeue
// once they take an item.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Item {
	return q.items
}

// Len returns the current number of queued items and refreshes the gauges.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	size := len(q.items)
	metrics.UpdateQueueSize(size, q.capacity)
	return size
}

// Cap returns the queue capacity.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close stops accepting items. Already queued items stay readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
