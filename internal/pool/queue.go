package pool

// taskQueue is a FIFO of pending tasks.
//
// It is not safe for concurrent use; the Pool's mutex guards it.
type taskQueue struct {
	tasks []Task
}

func newTaskQueue() *taskQueue {
	return &taskQueue{tasks: make([]Task, 0, 64)}
}

func (q *taskQueue) push(t Task) {
	q.tasks = append(q.tasks, t)
}

// pop removes and returns the front task. ok is false when empty.
func (q *taskQueue) pop() (Task, bool) {
	if len(q.tasks) == 0 {
		return Task{}, false
	}
	t := q.tasks[0]

	// Clear the slot so the closure can be collected.
	q.tasks[0] = Task{}

	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}
	return t, true
}

// clear drops every pending task and returns how many were dropped.
func (q *taskQueue) clear() int {
	n := len(q.tasks)
	clear(q.tasks)
	q.tasks = q.tasks[:0]
	return n
}

func (q *taskQueue) len() int {
	return len(q.tasks)
}
