// Package buffer provides the queue behind event feed subscriptions.
package buffer

import "sync"

// Queue hands items from a producer that must never block to a consumer reading a
// channel. Items are delivered in push order.
//
//	q := buffer.NewQueue[spawncap.Event]()
//	go func() {
//	    for e := range q.Out() {
//	        ...
//	    }
//	}()
//	q.Push(e)
//	q.Close()
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	head   int
	closed bool
	out    chan T
}

// NewQueue creates a queue and starts its delivery goroutine. The goroutine exits once
// the queue is closed and drained.
func NewQueue[T any]() *Queue[T] {
	q := &Queue[T]{out: make(chan T, 1)}
	q.cond = sync.NewCond(&q.mu)
	go q.deliver()
	return q
}

func (q *Queue[T]) deliver() {
	for {
		item, ok := q.pop()
		if !ok {
			close(q.out)
			return
		}
		q.out <- item
	}
}

// pop blocks until an item is queued or the queue is closed and empty.
func (q *Queue[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.head == len(q.items) && !q.closed {
		q.cond.Wait()
	}
	if q.head == len(q.items) {
		var zero T
		return zero, false
	}

	item := q.items[q.head]
	var zero T
	q.items[q.head] = zero
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return item, true
}

// Push queues item. It never blocks; items pushed after Close are dropped.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.items = append(q.items, item)
	q.cond.Signal()
}

// Out returns the delivery channel. It is closed after Close once every queued item was
// received.
func (q *Queue[T]) Out() <-chan T {
	return q.out
}

// Close stops accepting items. Safe to call more than once.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.cond.Signal()
}

// Len returns the number of items not yet handed to the delivery goroutine.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Closed reports whether Close was called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
