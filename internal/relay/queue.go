package relay

import (
	"sync"

	"github.com/gammazero/deque"
)

// eventQueue is an unbounded FIFO decoupling the transcriber's callback
// goroutine from the outbound relay loop. Push never blocks the producer and
// TryPop never blocks the consumer. Ready carries a wakeup signal so the
// consumer can wait instead of spinning while the queue is empty.
type eventQueue[T any] struct {
	mu    sync.Mutex
	items deque.Deque[T]
	ready chan struct{}
}

func newEventQueue[T any]() *eventQueue[T] {
	return &eventQueue[T]{
		ready: make(chan struct{}, 1),
	}
}

// Push appends an item and signals the consumer.
func (q *eventQueue[T]) Push(v T) {
	q.mu.Lock()
	q.items.PushBack(v)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// TryPop removes and returns the oldest item, or reports false immediately
// if the queue is empty.
func (q *eventQueue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.items.Len() == 0 {
		return zero, false
	}
	return q.items.PopFront(), true
}

// Len returns the number of queued items.
func (q *eventQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Ready returns a channel that receives a signal after a Push. The signal is
// coalesced: a single receive may cover several pushes, so consumers must
// drain with TryPop until empty.
func (q *eventQueue[T]) Ready() <-chan struct{} {
	return q.ready
}
