// Package queue implements the blocking FIFO that feeds pool workers.
package queue

import (
	"errors"
	"sync"

	"github.com/eapache/queue"
)

// ErrClosed is returned by Pop once the queue has been closed and drained.
var ErrClosed = errors.New("queue is closed")

// Queue is an unbounded, multi-producer multi-consumer FIFO.
//
// Consumers block on a condition variable while the queue is empty. Besides
// items, the queue carries wake-up tokens: WakeUp asks exactly one
// PopOrWake caller to return without an item so it can re-examine state
// that lives outside the queue. Tokens posted while nobody waits are kept
// until someone consumes them.
type Queue[T any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buf     *queue.Queue
	wakeups int
	closed  bool
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{buf: queue.New()}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends item to the tail and wakes one waiting consumer.
// Pushing to a closed queue is allowed; the item stays poppable.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	q.buf.Add(item)
	q.mu.Unlock()
	q.cond.Signal()
}

// Pop blocks until an item is available and returns the head.
// Wake-up tokens are ignored.
func (q *Queue[T]) Pop() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.buf.Length() == 0 {
		if q.closed {
			var zero T
			return zero, ErrClosed
		}
		q.cond.Wait()
	}
	return q.take(), nil
}

// PopOrWake blocks until either an item or a wake-up token is available.
// Items win over tokens. ok is false when a token was consumed.
func (q *Queue[T]) PopOrWake() (item T, ok bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.buf.Length() > 0 {
			return q.take(), true, nil
		}
		if q.wakeups > 0 {
			q.wakeups--
			return item, false, nil
		}
		if q.closed {
			return item, false, ErrClosed
		}
		q.cond.Wait()
	}
}

// TryPop returns the head without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.buf.Length() == 0 {
		var zero T
		return zero, false
	}
	return q.take(), true
}

// WakeUp posts one wake-up token.
func (q *Queue[T]) WakeUp() {
	q.mu.Lock()
	q.wakeups++
	q.mu.Unlock()
	// Broadcast: a plain Pop waiter may swallow a Signal without consuming the token.
	q.cond.Broadcast()
}

// Close marks the queue closed and releases every blocked consumer once
// the remaining items are drained.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.buf.Length()
}

// take removes the head. Caller holds q.mu and has checked Length > 0.
func (q *Queue[T]) take() T {
	v, _ := q.buf.Remove().(T)
	return v
}
