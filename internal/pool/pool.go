// Package pool is a fixed-size worker pool with a blocking group barrier.
//
// Workers take tasks from a shared FIFO queue. WaitAll blocks until the queue
// is empty and no task is executing, then hands back the per-task results
// collected since the previous WaitAll. A task that returns an error or
// panics produces a failed Result; the worker keeps running.
//
// A Pool is driven by a single coordinator: Submit and WaitAll are safe to
// call from any goroutine, but results go to whichever WaitAll observes the
// barrier first.
package pool

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrClosed is returned by Submit after Shutdown.
var ErrClosed = errors.New("worker pool is shut down")

// ErrNoFunc is returned by Submit for a task without a function.
var ErrNoFunc = errors.New("task has no function")

// Task is one unit of work. Run receives the 1-based ID of the executing
// worker.
type Task struct {
	ID  string
	Run func(workerID int) error
}

// Result is the outcome of one task.
type Result struct {
	TaskID   string
	WorkerID int
	Err      error
	Duration time.Duration
}

// OK reports whether the task finished without error.
func (r Result) OK() bool {
	return r.Err == nil
}

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	TaskID string
	Value  any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in task %s: %s", e.TaskID, panicToString(e.Value))
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Workers   int   `json:"workers"`
	Active    int   `json:"active"`
	Pending   int   `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Pool runs tasks on a fixed set of goroutines.
//
// INVARIANTS (guarded by mu):
//   - active counts tasks that have been dequeued and not yet finished
//   - idle is broadcast whenever queue is empty and active is zero
type Pool struct {
	workers int

	mu      sync.Mutex
	work    *sync.Cond // queue non-empty or stopped
	idle    *sync.Cond // queue empty and active == 0
	queue   *taskQueue
	active  int
	stopped bool
	results []Result

	completed int64
	failed    int64

	wg sync.WaitGroup
}

// New starts a pool with the given number of workers. Values below 1 are
// raised to 1.
func New(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		workers: workers,
		queue:   newTaskQueue(),
	}
	p.work = sync.NewCond(&p.mu)
	p.idle = sync.NewCond(&p.mu)

	for i := 1; i <= workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// Workers returns the pool size.
func (p *Pool) Workers() int {
	return p.workers
}

// Submit queues t and wakes one idle worker.
func (p *Pool) Submit(t Task) error {
	if t.Run == nil {
		return fmt.Errorf("submit %s: %w", t.ID, ErrNoFunc)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrClosed
	}
	p.queue.push(t)
	p.work.Signal()
	return nil
}

// WaitAll blocks until the queue is empty and no task is running, then
// returns the results of every task finished since the previous call, in
// completion order.
//
// Both conditions are required: a task that was dequeued but has not
// finished keeps WaitAll blocked.
func (p *Pool) WaitAll() []Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.queue.len() > 0 || p.active > 0 {
		p.idle.Wait()
	}
	results := p.results
	p.results = nil
	return results
}

// Shutdown stops accepting tasks, discards any still queued, waits for
// running tasks to finish and joins every worker. It returns the number of
// discarded tasks. Calling Shutdown again returns 0.
func (p *Pool) Shutdown() int {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return 0
	}
	p.stopped = true
	dropped := p.queue.clear()
	p.work.Broadcast()
	if p.active == 0 {
		p.idle.Broadcast()
	}
	p.mu.Unlock()

	p.wg.Wait()
	return dropped
}

// Drain runs every queued task to completion, then shuts the pool down.
// It returns the results that WaitAll would have returned.
func (p *Pool) Drain() []Result {
	results := p.WaitAll()
	p.Shutdown()
	return results
}

// Stats returns current counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Workers:   p.workers,
		Active:    p.active,
		Pending:   p.queue.len(),
		Completed: p.completed,
		Failed:    p.failed,
	}
}

// WorkerLabel renders a worker ID as "worker-N".
func WorkerLabel(id int) string {
	return fmt.Sprintf("worker-%d", id)
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for p.queue.len() == 0 && !p.stopped {
			p.work.Wait()
		}
		if p.stopped {
			p.mu.Unlock()
			return
		}
		task, _ := p.queue.pop()
		p.active++
		p.mu.Unlock()

		result := execute(id, task)

		p.mu.Lock()
		p.active--
		p.results = append(p.results, result)
		if result.OK() {
			p.completed++
		} else {
			p.failed++
		}
		if p.queue.len() == 0 && p.active == 0 {
			p.idle.Broadcast()
		}
		p.mu.Unlock()
	}
}

// execute runs one task outside the pool lock, converting a panic into a
// failed result.
func execute(workerID int, task Task) (result Result) {
	start := time.Now()
	result = Result{TaskID: task.ID, WorkerID: workerID}

	defer func() {
		if r := recover(); r != nil {
			result.Err = &PanicError{TaskID: task.ID, Value: r}
		}
		result.Duration = time.Since(start)
	}()

	result.Err = task.Run(workerID)
	return result
}

// panicToString converts a recovered panic value to a string.
func panicToString(r any) string {
	switch v := r.(type) {
	case string:
		return v
	case error:
		return v.Error()
	default:
		return fmt.Sprintf("%v", v)
	}
}
