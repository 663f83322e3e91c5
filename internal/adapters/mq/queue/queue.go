// Package queue carries change notifications from writers to workers.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/salle/internal/domain/model"
	"github.com/okian/salle/pkg/metrics"
)

const defaultCapacity = 1024

// Change is the payload flowing through the queue.
type Change = model.Change

// Queue provides non-blocking enqueue and channel-based dequeue.
type Queue interface {
	// Enqueue adds a change, returning ErrFull or ErrClosed when refused.
	Enqueue(ctx context.Context, c Change) error

	// Dequeue returns a channel that is closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Change

	Len() int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	changes  chan Change
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a bounded queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.changes = make(chan Change, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0)
	return q
}

// Enqueue never blocks. A full queue drops the change; the periodic state
// refresh catches up with anything a worker missed.
func (q *InMemoryQueue) Enqueue(ctx context.Context, c Change) error {
	start := time.Now()
	defer func() { metrics.RecordQueueProcessingLatency(metrics.Since(start)) }()

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.refuse("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		q.refuse("context_cancelled")
		return err
	}

	select {
	case q.changes <- c:
		metrics.RecordQueueEnqueue()
		q.observe()
		return nil
	default:
		q.refuse("queue_full")
		return ErrFull
	}
}

func (q *InMemoryQueue) refuse(reason string) {
	metrics.RecordQueueEnqueueError()
	metrics.RecordErrorByComponent("queue", reason)
}

func (q *InMemoryQueue) observe() {
	size := len(q.changes)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}

// Dequeue wraps the buffer so each receive is counted.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Change {
	out := make(chan Change)
	go func() {
		defer close(out)
		for c := range q.changes {
			select {
			case out <- c:
				metrics.RecordQueueDequeue()
				q.observe()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the number of pending changes.
func (q *InMemoryQueue) Len() int {
	q.observe()
	return len(q.changes)
}

// Close stops accepting changes. Pending ones are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.changes)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
