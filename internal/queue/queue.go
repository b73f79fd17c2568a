package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned when the queue is at capacity
	ErrQueueFull = errors.New("queue is full")

	// ErrQueueClosed is returned when operations are attempted on a closed queue
	ErrQueueClosed = errors.New("queue is closed")

	// ErrQueueEmpty is returned by Peek when there is nothing queued
	ErrQueueEmpty = errors.New("queue is empty")
)

// Queue is a thread-safe bounded FIFO. Enqueue is non-blocking; Dequeue
// blocks until an item is available or the queue is closed. Items that
// were queued before Close are still handed out, so a consumer can drain
// outstanding work before it sees ErrQueueClosed.
type Queue[T any] struct {
	items   []T
	maxSize int

	// Synchronization
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	// State
	closed bool
	stats  Stats
}

// Stats tracks queue activity.
type Stats struct {
	TotalEnqueued int64
	TotalDequeued int64
	TotalDropped  int64
	TotalCleared  int64
	CurrentSize   int
	PeakSize      int
	LastEnqueue   time.Time
	LastDequeue   time.Time
}

// New creates a queue holding at most maxSize items. A non-positive
// maxSize is treated as 1.
func New[T any](maxSize int) *Queue[T] {
	if maxSize <= 0 {
		maxSize = 1
	}

	q := &Queue[T]{
		items:   make([]T, 0, maxSize),
		maxSize: maxSize,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)

	return q
}

// Enqueue appends item to the tail of the queue.
func (q *Queue[T]) Enqueue(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	if len(q.items) >= q.maxSize {
		q.stats.TotalDropped++
		return ErrQueueFull
	}

	q.items = append(q.items, item)

	q.stats.TotalEnqueued++
	q.stats.LastEnqueue = time.Now()
	q.stats.CurrentSize = len(q.items)
	if q.stats.CurrentSize > q.stats.PeakSize {
		q.stats.PeakSize = q.stats.CurrentSize
	}

	q.notEmpty.Signal()

	return nil
}

// Dequeue removes and returns the head of the queue, waiting for one to
// arrive if necessary. It returns ErrQueueClosed once the queue is closed
// and empty.
func (q *Queue[T]) Dequeue() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.notEmpty.Wait()
	}

	var zero T
	if len(q.items) == 0 {
		return zero, ErrQueueClosed
	}

	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]

	q.stats.TotalDequeued++
	q.stats.LastDequeue = time.Now()
	q.stats.CurrentSize = len(q.items)

	q.notFull.Signal()

	return item, nil
}

// Peek returns the head of the queue without removing it.
func (q *Queue[T]) Peek() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, ErrQueueEmpty
	}
	return q.items[0], nil
}

// Size returns the number of queued items.
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Clear removes every queued item and returns them in queue order.
func (q *Queue[T]) Clear() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := q.items
	q.items = make([]T, 0, q.maxSize)
	q.stats.TotalCleared += int64(len(removed))
	q.stats.CurrentSize = 0

	q.notFull.Broadcast()

	return removed
}

// Stats returns a snapshot of the queue statistics.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := q.stats
	stats.CurrentSize = len(q.items)
	return stats
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.closed
}

// Close stops the queue from accepting new items and wakes any waiters.
func (q *Queue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true

	q.notEmpty.Broadcast()
	q.notFull.Broadcast()

	return nil
}

// WaitForSpace blocks until there is space in the queue or the context is cancelled.
func (q *Queue[T]) WaitForSpace(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if len(q.items) < q.maxSize {
		q.mu.Unlock()
		return nil
	}
	q.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		q.mu.Lock()
		defer q.mu.Unlock()

		for {
			if q.closed {
				done <- ErrQueueClosed
				return
			}
			if len(q.items) < q.maxSize {
				done <- nil
				return
			}
			if ctx.Err() != nil {
				done <- ctx.Err()
				return
			}

			q.notFull.Wait()
		}
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// Wake up the waiting goroutine so it can observe ctx and exit
		q.mu.Lock()
		q.notFull.Broadcast()
		q.mu.Unlock()
		return ctx.Err()
	}
}
