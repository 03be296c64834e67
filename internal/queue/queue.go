// Package queue provides the shared work queue drained by the concurrent
// detection pool.
package queue

import "sync"

// Queue is a FIFO safe for use by multiple goroutines.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	head  int
}

// New creates a queue pre-loaded with items.
func New[T any](items ...T) *Queue[T] {
	q := &Queue[T]{items: make([]T, 0, len(items))}
	q.items = append(q.items, items...)
	return q
}

// Pop removes and returns the head item. ok is false when the queue is empty.
func (q *Queue[T]) Pop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == len(q.items) {
		return item, false
	}
	item = q.items[q.head]
	var zero T
	q.items[q.head] = zero
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return item, true
}
