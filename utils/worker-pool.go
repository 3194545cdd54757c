package utils

import (
	"context"
	"runtime"
	"sync"
)

// WorkerPool runs a work function over jobs on a fixed number of goroutines.
type WorkerPool[J, R any] struct {
	NumWorkers int
	JobQueue   chan J
	Results    chan R
	wg         sync.WaitGroup
	started    bool
	mu         sync.Mutex
}

// NewWorkerPool creates a pool. numWorkers <= 0 means runtime.NumCPU().
func NewWorkerPool[J, R any](numWorkers int, jobBufferSize int, resultBufferSize int) *WorkerPool[J, R] {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	return &WorkerPool[J, R]{
		NumWorkers: numWorkers,
		JobQueue:   make(chan J, jobBufferSize),
		Results:    make(chan R, resultBufferSize),
	}
}

// StartWorkers starts the worker goroutines. Calling it twice is a no-op.
func (wp *WorkerPool[J, R]) StartWorkers(workFunc func(J) R) {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.started {
		return
	}

	wp.started = true
	wp.wg.Add(wp.NumWorkers)

	for i := 0; i < wp.NumWorkers; i++ {
		go wp.worker(workFunc)
	}
}

func (wp *WorkerPool[J, R]) worker(workFunc func(J) R) {
	defer wp.wg.Done()

	for job := range wp.JobQueue {
		wp.Results <- workFunc(job)
	}
}

// SubmitJob adds a job to the queue.
func (wp *WorkerPool[J, R]) SubmitJob(job J) {
	wp.JobQueue <- job
}

// ParallelProcessor fans a batch out over a worker pool.
type ParallelProcessor struct {
	NumWorkers int
	Progress   *ProgressReporter
}

// NewParallelProcessor creates a processor. numWorkers <= 0 means runtime.NumCPU().
func NewParallelProcessor(numWorkers int) *ParallelProcessor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &ParallelProcessor{NumWorkers: numWorkers}
}

type indexed[T any] struct {
	index int
	value T
}

// ProcessBatch applies workFunc to every item and returns the results in
// input order. It stops submitting work once ctx is done and returns ctx.Err().
func ProcessBatch[T, R any](ctx context.Context, pp *ParallelProcessor, items []T,
	workFunc func(int, T) R, progressName string) ([]R, error) {

	if len(items) == 0 {
		return []R{}, nil
	}

	tracker := pp.Progress.Track(int64(len(items)), progressName)

	wp := NewWorkerPool[indexed[T], indexed[R]](pp.NumWorkers, len(items), len(items))
	wp.StartWorkers(func(job indexed[T]) indexed[R] {
		result := workFunc(job.index, job.value)
		tracker.Increment()
		return indexed[R]{index: job.index, value: result}
	})

	submitted := 0
	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		wp.SubmitJob(indexed[T]{index: i, value: item})
		submitted++
	}
	close(wp.JobQueue)

	results := make([]R, len(items))
	for i := 0; i < submitted; i++ {
		res := <-wp.Results
		results[res.index] = res.value
	}

	wp.wg.Wait()
	close(wp.Results)
	tracker.Finish()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
