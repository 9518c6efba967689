// Package worker runs scoring jobs from a queue on a fixed set of goroutines.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/leadscore/internal/adapters/mq/queue"
	"github.com/okian/leadscore/pkg/logger"
	"github.com/okian/leadscore/pkg/metrics"
)

// Processor handles one job.
type Processor interface {
	Process(ctx context.Context, job queue.Job) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, job queue.Job) error

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, job queue.Job) error { return f(ctx, job) }

// ErrorHandler receives the job and the error for every failed job.
type ErrorHandler func(job queue.Job, err error)

// Source is where workers receive jobs from.
type Source interface {
	Jobs() <-chan queue.Job
}

// worker drains the source until it is closed or the context ends.
type worker struct {
	src     Source
	proc    Processor
	onError ErrorHandler
	logger  logger.Logger
}

func (w *worker) run(ctx context.Context) {
	jobs := w.src.Jobs()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.handle(ctx, job); err != nil {
				metrics.RecordWorkerError()
				w.logger.Error(ctx, "job failed",
					logger.String("company_id", job.CompanyID),
					logger.Error(err),
				)
				if w.onError != nil {
					w.onError(job, err)
				}
			}
		}
	}
}

// handle runs one job and turns a panic into ErrPanic so a bad company
// cannot take the worker down.
func (w *worker) handle(ctx context.Context, job queue.Job) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByComponent("worker", "panic")
			err = fmt.Errorf("%w: %s: %v", ErrPanic, job.CompanyID, r)
		}
		metrics.RecordCompanyLatency(float64(time.Since(start).Milliseconds()))
	}()
	return w.proc.Process(ctx, job)
}

// Pool manages a fixed number of workers sharing one source.
type Pool struct {
	size    int
	src     Source
	proc    Processor
	name    string
	onError ErrorHandler
	logger  logger.Logger

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
	done    chan struct{}
}

// NewPool creates a pool. A size below one means runtime.NumCPU().
func NewPool(size int, src Source, proc Processor, opts ...Option) *Pool {
	if size < 1 {
		size = runtime.NumCPU()
	}
	p := &Pool{
		size: size,
		src:  src,
		proc: proc,
		name: "worker",
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("worker-pool")
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Start launches the workers. They exit when the source is closed and
// drained or when ctx ends.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrStarted
	}
	p.started = true

	for i := 0; i < p.size; i++ {
		w := &worker{
			src:     p.src,
			proc:    p.proc,
			onError: p.onError,
			logger:  p.logger.Named(p.name + "-" + strconv.Itoa(i)),
		}
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.run(ctx)
		}()
	}
	go func() {
		p.wg.Wait()
		metrics.UpdateWorkerCount(0)
		close(p.done)
	}()

	metrics.UpdateWorkerCount(p.size)
	p.logger.Debug(ctx, "worker pool started", logger.Int("workers", p.size))
	return nil
}

// Wait blocks until every worker has exited or ctx ends.
func (p *Pool) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for workers: %w", ctx.Err())
	}
}

// Shutdown closes the source when it supports it and waits for the workers
// to drain what is left.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.src.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return nil
	}
	if err := p.Wait(ctx); err != nil {
		p.logger.Warn(ctx, "worker shutdown timed out")
		return err
	}
	return nil
}
