package pool

// jobQueue is a FIFO of pending tasks.
//
// The queue is unbounded so submissions never block the caller. It has no
// lock of its own: every method is called with Pool.mu held.
type jobQueue struct {
	tasks []*task
}

func newJobQueue() *jobQueue {
	return &jobQueue{tasks: make([]*task, 0, 64)}
}

// push appends a task to the back of the queue.
func (q *jobQueue) push(t *task) {
	q.tasks = append(q.tasks, t)
}

// pop removes and returns the front task.
// Returns (nil, false) if the queue is empty.
func (q *jobQueue) pop() (*task, bool) {
	if len(q.tasks) == 0 {
		return nil, false
	}

	t := q.tasks[0]

	// Nil out the slot so the backing array does not pin finished work.
	q.tasks[0] = nil

	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}
	return t, true
}

// drain removes and returns every pending task.
func (q *jobQueue) drain() []*task {
	out := q.tasks
	q.tasks = nil
	return out
}

func (q *jobQueue) len() int {
	return len(q.tasks)
}
