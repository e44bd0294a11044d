package core

import (
	"context"
	"sync"
)

// DispatchQueue is the in-process FIFO between submission acceptance and the
// dispatch worker. Unbounded by default; a positive capacity switches it to
// bounded mode where Enqueue blocks instead of dropping.
type DispatchQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []DispatchWorkItem
	capacity int
	closed   bool
}

func NewDispatchQueue() *DispatchQueue {
	return NewBoundedDispatchQueue(0)
}

// NewBoundedDispatchQueue builds a queue holding at most capacity items;
// capacity <= 0 means unbounded.
func NewBoundedDispatchQueue(capacity int) *DispatchQueue {
	q := &DispatchQueue{capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends the item in FIFO order. It returns ErrQueueClosed after
// Close, and blocks for capacity (or context cancellation) in bounded mode.
func (q *DispatchQueue) Enqueue(ctx context.Context, item DispatchWorkItem) error {
	if q == nil {
		return ErrQueueClosed
	}

	// Wake blocked producers when the context ends so they can observe the
	// cancellation instead of waiting on the condvar forever.
	var stop func() bool
	if ctx != nil && ctx.Done() != nil {
		stop = context.AfterFunc(ctx, func() {
			q.mu.Lock()
			q.notFull.Broadcast()
			q.mu.Unlock()
		})
		defer stop()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.closed {
			return ErrQueueClosed
		}
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if q.capacity <= 0 || len(q.items) < q.capacity {
			break
		}
		q.notFull.Wait()
	}
	q.items = append(q.items, item)
	q.notEmpty.Signal()
	return nil
}

// Dequeue blocks until an item is available or the queue is closed and
// drained; the second return is false only in the latter case.
func (q *DispatchQueue) Dequeue(ctx context.Context) (DispatchWorkItem, bool) {
	if q == nil {
		return DispatchWorkItem{}, false
	}

	var stop func() bool
	if ctx != nil && ctx.Done() != nil {
		stop = context.AfterFunc(ctx, func() {
			q.mu.Lock()
			q.notEmpty.Broadcast()
			q.mu.Unlock()
		})
		defer stop()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		if q.closed {
			return DispatchWorkItem{}, false
		}
		if ctx != nil {
			if ctx.Err() != nil {
				return DispatchWorkItem{}, false
			}
		}
		q.notEmpty.Wait()
	}
	item := q.items[0]
	q.items = q.items[1:]
	q.notFull.Signal()
	return item, true
}

// Close rejects further enqueues; queued items remain dequeueable until
// drained.
func (q *DispatchQueue) Close() {
	if q == nil {
		return
	}
	q.mu.Lock()
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	q.mu.Unlock()
}

func (q *DispatchQueue) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

var _ WorkQueue = (*DispatchQueue)(nil)
