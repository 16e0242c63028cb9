package engine

import (
	"context"
	"sync"
)

// task is one unit of worker execution.
type task struct {
	seq int64
	tag string
	fn  func(ctx context.Context)

	// abort is called instead of fn if the task is dropped unrun
	// (cancelled by tag or left over at shutdown). May be nil.
	abort func()
}

// taskQueue is a thread-safe FIFO queue of tasks.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop (prevents goroutine hangs on context cancellation).
type taskQueue struct {
	mu     sync.Mutex
	tasks  []task
	seq    int64
	closed bool
	signal chan struct{} // Signals task availability (buffered, size 1)
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		tasks:  make([]task, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue stamps t with the next sequence number and appends it.
// Returns false if the queue is closed.
func (q *taskQueue) Enqueue(t task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.seq++
	t.seq = q.seq
	q.tasks = append(q.tasks, t)

	// Non-blocking - buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes and returns the front task without blocking.
func (q *taskQueue) TryDequeue() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return task{}, false
	}

	t := q.tasks[0]

	// Nil out the slot so the closure can be collected.
	q.tasks[0] = task{}

	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}

	return t, true
}

// RemoveTag drops every queued task with the given tag and returns them.
func (q *taskQueue) RemoveTag(tag string) []task {
	q.mu.Lock()
	defer q.mu.Unlock()

	var removed []task
	kept := q.tasks[:0]
	for _, t := range q.tasks {
		if t.tag == tag {
			removed = append(removed, t)
			continue
		}
		kept = append(kept, t)
	}
	// Clear the tail so dropped closures can be collected.
	for i := len(kept); i < len(q.tasks); i++ {
		q.tasks[i] = task{}
	}
	q.tasks = kept
	return removed
}

// CountTag returns how many queued tasks carry tag.
func (q *taskQueue) CountTag(tag string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, t := range q.tasks {
		if t.tag == tag {
			n++
		}
	}
	return n
}

// Wait returns a channel that signals when tasks may be available.
func (q *taskQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Close stops accepting tasks and returns whatever was still queued.
// Wakes any blocked waiters by closing the signal channel.
func (q *taskQueue) Close() []task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.signal)

	left := q.tasks
	q.tasks = nil
	return left
}
