// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"runtime"
	"sync"
)

// Task is one unit of batch work. Returning an error marks the task failed
// without affecting the rest of the batch.
type Task func(ctx context.Context) error

// Pool fans a fixed set of tasks out over a bounded number of goroutines and
// waits for all of them. It is built for batch jobs like the renewal sweep,
// where every task must run exactly once and the batch must not outlive the
// tick that started it.
type Pool struct {
	n int
}

func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{n: workers}
}

// Run executes all tasks with at most p.n in flight and returns the number
// that succeeded. Tasks still queued when ctx is canceled are skipped and
// counted as failures.
func (p *Pool) Run(ctx context.Context, tasks []Task) int {
	jobs := make(chan Task)
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < p.n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				if ctx.Err() != nil {
					continue
				}
				if err := task(ctx); err != nil {
					continue
				}
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}

	for _, task := range tasks {
		if task == nil {
			continue
		}
		jobs <- task
	}
	close(jobs)
	wg.Wait()
	return succeeded
}
