// Package worker prefetches base map tiles into the tile cache in parallel.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/MeKo-Tech/zonat/internal/tile"
)

// Fetcher makes a tile available in the cache.
// tilecache.Cache.Prefetch satisfies it.
type Fetcher interface {
	Prefetch(ctx context.Context, coords tile.Coords) (cached bool, size int, err error)
}

// Task is a single tile to prefetch.
type Task struct {
	Coords tile.Coords
}

// Result is the outcome of a Task.
type Result struct {
	Task    Task
	Cached  bool
	Bytes   int
	Err     error
	Elapsed time.Duration
}

// ProgressFunc is called after each task completes.
type ProgressFunc func(completed, total, failed int)

// Config configures the worker pool.
type Config struct {
	Workers    int
	Fetcher    Fetcher
	OnProgress ProgressFunc
}

// Pool runs prefetch tasks on a fixed number of workers.
type Pool struct {
	workers    int
	fetcher    Fetcher
	onProgress ProgressFunc
}

// New creates a new worker pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:    workers,
		fetcher:    cfg.Fetcher,
		onProgress: cfg.OnProgress,
	}
}

// TasksFor builds one task per coordinate.
func TasksFor(coords []tile.Coords) []Task {
	tasks := make([]Task, len(coords))
	for i, c := range coords {
		tasks[i] = Task{Coords: c}
	}
	return tasks
}

// Run executes all tasks and returns their results in completion order.
// It blocks until all tasks complete or the context is cancelled. Tasks
// not started before cancellation are reported with the context error.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	taskCh := make(chan Task)
	resultCh := make(chan Result, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, taskCh, resultCh)
		}()
	}

	go func() {
		defer close(taskCh)
		for i, task := range tasks {
			select {
			case taskCh <- task:
			case <-ctx.Done():
				for _, rest := range tasks[i:] {
					resultCh <- Result{Task: rest, Err: ctx.Err()}
				}
				return
			}
		}
	}()

	results := make([]Result, 0, len(tasks))
	completed, failed := 0, 0
	for len(results) < len(tasks) {
		result := <-resultCh
		results = append(results, result)

		completed++
		if result.Err != nil {
			failed++
		}
		if p.onProgress != nil {
			p.onProgress(completed, len(tasks), failed)
		}
	}

	wg.Wait()
	return results
}

func (p *Pool) worker(ctx context.Context, tasks <-chan Task, results chan<- Result) {
	for task := range tasks {
		if err := ctx.Err(); err != nil {
			results <- Result{Task: task, Err: err}
			continue
		}

		start := time.Now()
		cached, size, err := p.fetcher.Prefetch(ctx, task.Coords)
		results <- Result{
			Task:    task,
			Cached:  cached,
			Bytes:   size,
			Err:     err,
			Elapsed: time.Since(start),
		}
	}
}

// Summary counts results by outcome.
type Summary struct {
	Fetched int
	Cached  int
	Failed  int
	Bytes   int64
}

// Summarize counts the outcome of results.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch {
		case r.Err != nil:
			s.Failed++
		case r.Cached:
			s.Cached++
		default:
			s.Fetched++
			s.Bytes += int64(r.Bytes)
		}
	}
	return s
}
