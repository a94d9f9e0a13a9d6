package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// WorkerPool runs collection tasks with bounded concurrency. Each submitted
// task owns one independent fetch; errors are gathered and the first one is
// surfaced from Stop.
type WorkerPool struct {
	workers int
	tasks   chan func(context.Context) error
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	mu      sync.Mutex
	errs    []error
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		tasks:   make(chan func(context.Context) error, workers*2),
	}
}

// Start starts the worker pool
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// worker drains the task queue until it closes or the context ends.
func (p *WorkerPool) worker(id int) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("worker panic recovered",
				slog.Int("worker_id", id),
				slog.String("panic", fmt.Sprint(r)),
			)
			p.recordError(fmt.Errorf("worker %d panicked: %v", id, r))
		}
		p.wg.Done()
	}()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			if err := task(p.ctx); err != nil {
				p.recordError(err)
			}
		}
	}
}

// Submit enqueues a task. Tasks submitted after the context is cancelled are
// dropped.
func (p *WorkerPool) Submit(task func(context.Context) error) {
	select {
	case <-p.ctx.Done():
		return
	case p.tasks <- task:
	}
}

// Stop waits for all submitted tasks and returns the first recorded error.
func (p *WorkerPool) Stop() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.tasks)
	p.wg.Wait()

	if p.cancel != nil {
		p.cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = false
	if len(p.errs) > 0 {
		return p.errs[0]
	}
	return nil
}

func (p *WorkerPool) recordError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, err)
}
