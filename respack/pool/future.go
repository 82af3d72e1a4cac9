package pool

import (
	"context"
	"errors"
	"sync"
)

// Future is the pending result of a submitted task.
type Future struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Completed returns a future that already holds err.
func Completed(err error) *Future {
	f := newFuture()
	f.complete(err)
	return f
}

func (f *Future) complete(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done is closed once the task finished.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the task finished or ctx is done.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// All returns a future that completes when every future has, joining their errors.
// If every future is already complete, so is the result.
func All(futures ...*Future) *Future {
	out := newFuture()
	collect := func() {
		var errs []error
		for _, f := range futures {
			if f == nil {
				continue
			}
			<-f.done
			if f.err != nil {
				errs = append(errs, f.err)
			}
		}
		out.complete(errors.Join(errs...))
	}

	for _, f := range futures {
		if f != nil && !f.isDone() {
			go collect()
			return out
		}
	}
	collect()
	return out
}

func (f *Future) isDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
