// Package pool runs build side work, such as asset copies, on a bounded set of
// goroutines. A pool that was never started, or was started with zero workers, runs
// every task inline on the submitting goroutine.
package pool

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// ErrStopped is reported by tasks that were cancelled because the pool stopped.
var ErrStopped = errors.New("pool stopped")

// Task is one unit of work.
type Task func(ctx context.Context) error

// Pool is a restartable wrapper around a conc pool.
// Tasks must not submit to the pool they run on.
type Pool struct {
	mu      sync.RWMutex
	running bool
	workers int
	inner   *pool.Pool
	ctx     context.Context
	cancel  context.CancelCauseFunc
	logger  zerolog.Logger
}

// New creates a stopped pool.
func New(logger zerolog.Logger) *Pool {
	return &Pool{logger: logger.With().Str("component", "pool").Logger()}
}

// Start launches the pool with the given number of workers. Starting a running pool
// is a no-op; zero workers keeps the pool in inline mode.
func (p *Pool) Start(workers int) error {
	if workers < 0 {
		return errors.New("worker count must not be negative")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running || workers == 0 {
		return nil
	}
	p.ctx, p.cancel = context.WithCancelCause(context.Background())
	p.inner = pool.New().WithMaxGoroutines(workers)
	p.workers = workers
	p.running = true
	p.logger.Debug().Int("workers", workers).Msg("Worker pool started")
	return nil
}

// Running reports whether tasks are executed asynchronously.
func (p *Pool) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Stop cancels outstanding tasks and waits for the workers to exit. The pool falls
// back to inline execution afterwards and may be started again.
func (p *Pool) Stop() {
	// cancel first so submitters blocked on a full pool drain
	p.mu.RLock()
	if !p.running {
		p.mu.RUnlock()
		return
	}
	p.cancel(ErrStopped)
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.inner.Wait()
	p.running = false
	p.inner = nil
	p.logger.Debug().Int("workers", p.workers).Msg("Worker pool stopped")
}

// Submit schedules task and returns a future for its result. When the pool is not
// running the task has already completed by the time Submit returns.
func (p *Pool) Submit(ctx context.Context, task Task) *Future {
	f := newFuture()

	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.running {
		f.complete(run(ctx, task))
		return f
	}

	taskCtx, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(p.ctx, func() { cancel(context.Cause(p.ctx)) })
	p.inner.Go(func() {
		defer stop()
		defer cancel(nil)
		if err := context.Cause(taskCtx); err != nil {
			f.complete(err)
			return
		}
		f.complete(run(taskCtx, task))
	})
	return f
}

func run(ctx context.Context, task Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return task(ctx)
}
