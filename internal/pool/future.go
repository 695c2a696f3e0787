package pool

import (
	"context"
	"sync"
)

// Future is the eventual result of a submitted job.
type Future[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns an already-completed Future.
func Resolved[T any](v T, err error) *Future[T] {
	f := newFuture[T]()
	f.resolve(v, err)
	return f
}

// Recover returns a Future that resolves like f, except that a failure is
// replaced by fn(err) and a nil error.
func Recover[T any](f *Future[T], fn func(error) T) *Future[T] {
	select {
	case <-f.done:
		if f.err != nil {
			return Resolved(fn(f.err), nil)
		}
		return f
	default:
	}

	out := newFuture[T]()
	go func() {
		<-f.done
		if f.err != nil {
			out.resolve(fn(f.err), nil)
			return
		}
		out.resolve(f.val, nil)
	}()
	return out
}

// resolve completes the future. Only the first call has any effect.
func (f *Future[T]) resolve(v T, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the job finishes or ctx is done.
// A ctx error does not cancel the job itself.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Wait blocks until the job finishes and returns its error.
func (f *Future[T]) Wait() error {
	<-f.done
	return f.err
}
