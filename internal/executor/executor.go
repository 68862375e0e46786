package executor

import (
	"sync"

	"github.com/gammazero/workerpool"
)

// Executor runs work on a bounded pool of goroutines and hands results back
// to a single consumer. Closures passed to Post run only inside Drain, on
// whichever goroutine calls it, so consumers never need their own locking.
type Executor struct {
	wp *workerpool.WorkerPool

	mu      sync.Mutex
	results []func()
	notify  chan struct{}
}

func New(maxWorkers int) *Executor {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	return &Executor{
		wp:     workerpool.New(maxWorkers),
		notify: make(chan struct{}, 1),
	}
}

// Submit queues task on the pool.
func (e *Executor) Submit(task func()) {
	if task != nil {
		e.wp.Submit(task)
	}
}

// Run executes work on the pool and posts the closure it returns, if any,
// to the consumer queue.
func (e *Executor) Run(work func() func()) {
	if work == nil {
		return
	}

	e.wp.Submit(func() {
		if result := work(); result != nil {
			e.Post(result)
		}
	})
}

// Post queues fn for the consumer.
func (e *Executor) Post(fn func()) {
	if fn == nil {
		return
	}

	e.mu.Lock()
	e.results = append(e.results, fn)
	e.mu.Unlock()

	select {
	case e.notify <- struct{}{}:
	default:
	}
}

// Drain runs every posted closure in order on the calling goroutine and
// reports how many ran. Closures posted while draining run in the same call.
func (e *Executor) Drain() int {
	ran := 0
	for {
		e.mu.Lock()
		batch := e.results
		e.results = nil
		e.mu.Unlock()

		if len(batch) == 0 {
			return ran
		}

		for _, fn := range batch {
			fn()
			ran++
		}
	}
}

// Notify fires at least once after one or more Post calls.
func (e *Executor) Notify() <-chan struct{} {
	return e.notify
}

// Pending reports how many posted closures are waiting for Drain.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.results)
}

// Stop waits for running tasks and abandons queued ones.
func (e *Executor) Stop() {
	e.wp.Stop()
}

// StopWait waits for running and queued tasks.
func (e *Executor) StopWait() {
	e.wp.StopWait()
}
