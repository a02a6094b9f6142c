package rescache

import "sync"

// task is one queued creation request.
type task[V any] struct {
	key   string
	reply chan result[V]
}

type result[V any] struct {
	value V
	err   error
}

// taskQueue is an unbounded FIFO drained by the cache worker.
//
// signal has a buffer of one, so bursts of Enqueue coalesce into a single
// wakeup and the worker drains with tryDequeue until empty.
type taskQueue[V any] struct {
	mu     sync.Mutex
	tasks  []task[V]
	closed bool
	signal chan struct{}
}

func newTaskQueue[V any]() *taskQueue[V] {
	return &taskQueue[V]{
		tasks:  make([]task[V], 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// enqueue appends t. Returns false if the queue is closed.
func (q *taskQueue[V]) enqueue(t task[V]) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, t)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// tryDequeue pops the front task without blocking.
func (q *taskQueue[V]) tryDequeue() (task[V], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return task[V]{}, false
	}
	t := q.tasks[0]
	q.tasks[0] = task[V]{}
	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}
	return t, true
}

// wait returns a channel that fires when tasks may be available. It is
// closed by close.
func (q *taskQueue[V]) wait() <-chan struct{} {
	return q.signal
}

func (q *taskQueue[V]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// close stops new enqueues and returns whatever was still queued.
func (q *taskQueue[V]) close() []task[V] {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.signal)

	rest := q.tasks
	q.tasks = nil
	return rest
}
