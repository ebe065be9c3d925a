package factory

import (
	"context"

	"golang.org/x/sync/semaphore"

	"overmind/internal/ranking"
)

// workerPool bounds the number of goroutines running blocking factory work
// for the async facade. Result channels are buffered so a worker never blocks
// on a caller that stopped listening.
type workerPool struct {
	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
}

func newWorkerPool(size int) *workerPool {
	if size <= 0 {
		size = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &workerPool{
		sem:    semaphore.NewWeighted(int64(size)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// submit acquires a worker slot and runs fn on its own goroutine. The slot is
// always released when fn returns. Returns an error when the caller's context
// is done before a slot frees up, or when the pool is closed.
func (p *workerPool) submit(ctx context.Context, fn func()) error {
	if err := p.ctx.Err(); err != nil {
		return err
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	go func() {
		defer p.sem.Release(1)
		fn()
	}()
	return nil
}

// close rejects further submissions. In-flight work finishes normally.
func (p *workerPool) close() {
	p.cancel()
}

// PlannerResult is the async counterpart of GetPlanner's return values.
type PlannerResult struct {
	Planner interface{}
	Err     error
}

// AGetPlanner dispatches GetPlanner to the bounded worker pool and returns a
// channel that delivers the single result. The calling goroutine is free to
// keep servicing other work; result delivery preserves ordering only relative
// to this request.
func (f *PlannerFactory) AGetPlanner(ctx context.Context, name string) <-chan PlannerResult {
	out := make(chan PlannerResult, 1)
	err := f.pool.submit(ctx, func() {
		inst, err := f.GetPlanner(ctx, name)
		out <- PlannerResult{Planner: inst, Err: err}
	})
	if err != nil {
		out <- PlannerResult{Err: err}
	}
	return out
}

// ASelectBestPlanner dispatches SelectBestPlanner to the bounded worker pool.
func (f *PlannerFactory) ASelectBestPlanner(ctx context.Context, objective string, required []string, deep *ranking.DeepContext) <-chan SelectionResult {
	out := make(chan SelectionResult, 1)
	err := f.pool.submit(ctx, func() {
		rec, err := f.SelectBestPlanner(objective, required, deep)
		out <- SelectionResult{Planner: rec, Err: err}
	})
	if err != nil {
		out <- SelectionResult{Err: err}
	}
	return out
}
