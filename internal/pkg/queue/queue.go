package queue

import (
	"errors"
	"sync"
)

var ErrEmpty = errors.New("queue is empty")

// Bounded first in, first out queue. When full, inserting evicts the
// oldest element so the newest samples are always kept.
type Queue[T any] struct {
	mu       sync.Mutex
	capacity int
	q        []T
}

// Creates an empty queue with a specified capacity
func CreateQueue[T any](capacity int) (*Queue[T], error) {
	if capacity <= 0 {
		return nil, errors.New("capacity should be greater than 0")
	}
	return &Queue[T]{
		capacity: capacity,
		q:        make([]T, 0, capacity),
	}, nil
}

// Inserts an item, reporting whether the oldest item was evicted to make room.
func (q *Queue[T]) Insert(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	evicted := false
	if len(q.q) >= q.capacity {
		var zero T
		q.q[0] = zero
		q.q = q.q[1:]
		evicted = true
	}
	q.q = append(q.q, item)
	return evicted
}

// Removes the oldest element from the queue
func (q *Queue[T]) Remove() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.q) > 0 {
		item := q.q[0]
		q.q = q.q[1:]
		return item, nil
	}
	var zero T
	return zero, ErrEmpty
}

// Drops every element for which keep returns false and returns how many were dropped.
func (q *Queue[T]) Retain(keep func(T) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := make([]T, 0, q.capacity)
	for _, item := range q.q {
		if keep(item) {
			kept = append(kept, item)
		}
	}
	dropped := len(q.q) - len(kept)
	q.q = kept
	return dropped
}

// Returns a copy of the elements, oldest first.
func (q *Queue[T]) Snapshot() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]T, len(q.q))
	copy(out, q.q)
	return out
}

// Returns the number of elements in the queue
func (q *Queue[T]) Length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.q)
}

// Returns true if the queue is empty
func (q *Queue[T]) IsEmpty() bool {
	return q.Length() == 0
}
