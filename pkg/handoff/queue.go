package handoff

import (
	"errors"
	"sync"
)

// ErrQueueFull indicates a push rejected because the queue was full.
var ErrQueueFull = errors.New("handoff: queue full")

// QueueStats counts queue activity.
type QueueStats struct {
	Pushed  uint64
	Popped  uint64
	Dropped uint64
	Pending int
}

// Queue is a bounded FIFO ring buffer for one-shot events.
// When full, Push rejects the new item; retained items keep their order.
type Queue[T any] struct {
	mu      sync.Mutex
	buf     []T
	head    int
	n       int
	pushed  uint64
	popped  uint64
	dropped uint64

	// consumer only
	scratch []T
	apply   func(T)
}

// NewQueue creates a queue holding at most capacity items.
// A capacity below 1 is raised to 1.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		buf:     make([]T, capacity),
		scratch: make([]T, 0, capacity),
	}
}

// OnApply registers the consumer callback Apply invokes per event.
func (q *Queue[T]) OnApply(fn func(T)) {
	q.apply = fn
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return len(q.buf)
}

// Len returns the number of pending items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

// Push appends v. Returns ErrQueueFull, and counts a drop, when full.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.n == len(q.buf) {
		q.dropped++
		return ErrQueueFull
	}
	q.buf[(q.head+q.n)%len(q.buf)] = v
	q.n++
	q.pushed++
	return nil
}

// Pop removes and returns the oldest item.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.n == 0 {
		return zero, false
	}
	v := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	q.popped++
	return v, true
}

// Drain removes every pending item and calls fn for each in arrival order.
// The lock is released before fn runs, so producers are never held up by
// the consumer's work. Returns the number of items drained. Consumer side.
func (q *Queue[T]) Drain(fn func(T)) int {
	q.mu.Lock()
	var zero T
	items := q.scratch[:0]
	for q.n > 0 {
		items = append(items, q.buf[q.head])
		q.buf[q.head] = zero
		q.head = (q.head + 1) % len(q.buf)
		q.n--
	}
	q.popped += uint64(len(items))
	q.mu.Unlock()

	for i := range items {
		fn(items[i])
		items[i] = zero
	}
	q.scratch = items[:0]
	return len(items)
}

// Apply drains the queue into the OnApply callback.
func (q *Queue[T]) Apply() int {
	if q.apply == nil {
		return q.Drain(func(T) {})
	}
	return q.Drain(q.apply)
}

// Stats returns activity counters.
func (q *Queue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Pushed:  q.pushed,
		Popped:  q.popped,
		Dropped: q.dropped,
		Pending: q.n,
	}
}
