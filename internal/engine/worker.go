package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// workerKey marks contexts handed to tasks by a Worker.
type workerKey struct{}

// Worker is the single-consumer task loop.
//
// Thread-safety model:
//   - Post(), PostTagged(), Cancel(), Call(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Tasks run one at a time, in FIFO order, on the Run goroutine
type Worker struct {
	name    string
	queue   *taskQueue
	logger  *slog.Logger
	running atomic.Bool
	inTask  atomic.Bool
	stopped chan struct{}
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithLogger sets the worker's logger. Default: slog.Default().
func WithLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = l
	}
}

// NewWorker creates a worker. It does nothing until Run is called; tasks
// posted before that are queued.
func NewWorker(name string, opts ...WorkerOption) *Worker {
	w := &Worker{
		name:    name,
		queue:   newTaskQueue(),
		logger:  slog.Default(),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run starts the task loop. Blocks until ctx is cancelled or Stop is
// called. Tasks still queued at that point are aborted.
func (w *Worker) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(w.stopped)

	w.logger.Info("worker starting", "worker", w.name)
	taskCtx := context.WithValue(ctx, workerKey{}, w)

	for {
		t, ok := w.queue.TryDequeue()
		if ok {
			w.runTask(taskCtx, t)
			continue
		}

		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping: context cancelled", "worker", w.name)
			w.shutdown()
			return ctx.Err()

		case <-w.queue.Wait():
			// The signal channel closes when the queue is closed.
			if w.isClosed() && w.queue.Len() == 0 {
				w.logger.Info("worker stopping: queue closed", "worker", w.name)
				return nil
			}
		}
	}
}

func (w *Worker) runTask(ctx context.Context, t task) {
	w.inTask.Store(true)
	defer w.inTask.Store(false)
	t.fn(ctx)
}

// Stop closes the queue; Run returns once it notices. Queued tasks are
// aborted.
func (w *Worker) Stop() {
	w.shutdown()
}

// Stopped is closed when Run has returned.
func (w *Worker) Stopped() <-chan struct{} {
	return w.stopped
}

func (w *Worker) shutdown() {
	for _, t := range w.queue.Close() {
		if t.abort != nil {
			t.abort()
		}
	}
}

func (w *Worker) isClosed() bool {
	w.queue.mu.Lock()
	defer w.queue.mu.Unlock()
	return w.queue.closed
}

// Post queues fn. Returns false if the worker has stopped.
func (w *Worker) Post(fn func(ctx context.Context)) bool {
	return w.queue.Enqueue(task{fn: fn})
}

// PostTagged queues fn under tag so it can be cancelled with Cancel.
func (w *Worker) PostTagged(tag string, fn func(ctx context.Context)) bool {
	return w.queue.Enqueue(task{tag: tag, fn: fn})
}

// Cancel drops every queued (not yet running) task carrying tag and
// returns how many were dropped.
func (w *Worker) Cancel(tag string) int {
	removed := w.queue.RemoveTag(tag)
	for _, t := range removed {
		if t.abort != nil {
			t.abort()
		}
	}
	if len(removed) > 0 {
		w.logger.Debug("cancelled tasks", "worker", w.name, "tag", tag, "count", len(removed))
	}
	return len(removed)
}

// Pending returns how many tasks with tag are queued.
func (w *Worker) Pending(tag string) int {
	return w.queue.CountTag(tag)
}

// Len returns the number of queued tasks.
func (w *Worker) Len() int {
	return w.queue.Len()
}

// Call runs fn on the worker and waits for it. When ctx already belongs to
// this worker fn runs inline, so confined code can call back into Call
// without deadlocking.
//
// A panic inside fn is re-raised on the calling goroutine.
// Returns ErrWorkerStopped if the worker shuts down before fn runs, or
// ctx.Err() if the caller gives up first (fn may still run later).
func (w *Worker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if w.InWorker(ctx) {
		return fn(ctx)
	}

	type outcome struct {
		err      error
		panicked any
	}
	done := make(chan outcome, 1)

	ok := w.queue.Enqueue(task{
		fn: func(taskCtx context.Context) {
			var out outcome
			defer func() {
				if r := recover(); r != nil {
					out.panicked = r
				}
				done <- out
			}()
			out.err = fn(taskCtx)
		},
		abort: func() {
			done <- outcome{err: ErrWorkerStopped}
		},
	})
	if !ok {
		return ErrWorkerStopped
	}

	select {
	case out := <-done:
		if out.panicked != nil {
			panic(out.panicked)
		}
		return out.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InWorker reports whether ctx was handed out by this worker and a task is
// running on it right now. A task context that escapes to another goroutine
// still passes while some task is running; it fails once the worker is
// idle or stopped.
func (w *Worker) InWorker(ctx context.Context) bool {
	if ctx == nil || !w.inTask.Load() {
		return false
	}
	owner, _ := ctx.Value(workerKey{}).(*Worker)
	return owner == w
}

// MustBeWorker panics with a *ConfinementError unless ctx belongs to this
// worker.
func (w *Worker) MustBeWorker(ctx context.Context, op string) {
	if !w.InWorker(ctx) {
		panic(&ConfinementError{Op: op, Worker: w.name})
	}
}

// String implements fmt.Stringer.
func (w *Worker) String() string {
	return fmt.Sprintf("worker(%s, queued=%d)", w.name, w.queue.Len())
}
