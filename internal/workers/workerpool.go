package workers

import (
	"sync"
	"sync/atomic"
)

// WorkerPool runs queued jobs on a fixed number of goroutines.
type WorkerPool struct {
	jobCh   chan func()
	jobs    sync.WaitGroup
	workers sync.WaitGroup

	mu       sync.RWMutex
	stopped  bool
	stopOnce sync.Once

	dropped atomic.Int64
}

// NewWorkerPool starts workerCount workers reading from a queue of jobBufferSize.
func NewWorkerPool(workerCount, jobBufferSize int) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if jobBufferSize < 0 {
		jobBufferSize = 0
	}
	wp := &WorkerPool{
		jobCh: make(chan func(), jobBufferSize),
	}
	wp.workers.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go wp.worker()
	}
	return wp
}

func (wp *WorkerPool) worker() {
	defer wp.workers.Done()
	for job := range wp.jobCh {
		job()
	}
}

// AddJob enqueues a job without blocking. It returns false when the queue
// is full or the pool is stopped; the job is then dropped.
func (wp *WorkerPool) AddJob(job func()) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped {
		wp.dropped.Add(1)
		return false
	}

	wp.jobs.Add(1)
	select {
	case wp.jobCh <- func() {
		defer wp.jobs.Done()
		job()
	}:
		return true
	default:
		wp.jobs.Done()
		wp.dropped.Add(1)
		return false
	}
}

// Wait blocks until every accepted job has finished.
func (wp *WorkerPool) Wait() {
	wp.jobs.Wait()
}

// Pending is the number of jobs waiting in the queue.
func (wp *WorkerPool) Pending() int {
	return len(wp.jobCh)
}

// Capacity is the size of the job queue.
func (wp *WorkerPool) Capacity() int {
	return cap(wp.jobCh)
}

// Dropped is the number of jobs rejected so far.
func (wp *WorkerPool) Dropped() int64 {
	return wp.dropped.Load()
}

// Stop refuses new jobs, lets queued ones finish and waits for the workers.
// Safe to call more than once.
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		wp.mu.Lock()
		wp.stopped = true
		close(wp.jobCh)
		wp.mu.Unlock()
		wp.workers.Wait()
	})
}
