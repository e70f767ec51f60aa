package recorder

import (
	"context"
	"sync"

	"github.com/guidesnap/guidesnap/internal/guide"
)

// submission is one unit of work for the Run loop: either a captured
// event awaiting the pipeline, tagged with the page agent it came from so
// overlay signals go back to the right page, or a persistence job queued
// by a state transition. Jobs share the queue with events so durable
// writes commit in transition order relative to pipeline writes.
type submission struct {
	event  guide.UserEvent
	source string
	job    func(context.Context)
}

// eventQueue is a thread-safe FIFO queue for captured events.
//
// Unbounded: a burst of rapid interactions must never block the HTTP
// handler that accepted them. Thread-safety covers external enqueuing
// while the recorder's Run loop dequeues.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type eventQueue struct {
	mu     sync.Mutex
	items  []submission
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		items:  make([]submission, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a submission to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(s submission) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, s)

	// Non-blocking send - buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (submission{}, false) if the queue is empty.
func (q *eventQueue) TryDequeue() (submission, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return submission{}, false
	}

	s := q.items[0]

	// Nil out the slot so the event's screenshots and element snapshot
	// don't outlive the dequeue in the backing array.
	q.items[0] = submission{}

	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}

	return s, true
}

// Wait returns a channel that signals when items may be available.
// Use with select for context-aware waiting.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Closed reports whether Close has been called. The Run loop checks this
// rather than inferring closure from emptiness, because a coalesced
// signal can stay buffered after TryDequeue already drained the item.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close signals that no more submissions will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
