package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"
)

// Future is the result of a task started with Go
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Outcome is what a bounded wait on a Future observed.
// Pending means the value was not available in time: the caller treats it
// as absent, never as a failure. Err is the task's own failure, or the
// context error when the wait itself was cancelled.
type Outcome[T any] struct {
	Value   T
	Err     error
	Pending bool
}

// Go starts fn on its own goroutine. A panic in fn is captured as an error.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("task panicked: %v\n%s", r, debug.Stack())
			}
		}()
		f.value, f.err = fn(ctx)
	}()
	return f
}

// Resolved returns an already completed Future
func Resolved[T any](value T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), value: value, err: err}
	close(f.done)
	return f
}

// Done is closed once the task has finished
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await waits at most timeout for the task
func (f *Future[T]) Await(ctx context.Context, timeout time.Duration) Outcome[T] {
	return f.AwaitUntil(ctx, time.Now().Add(timeout))
}

// AwaitUntil waits until deadline for the task.
// Several futures awaited against the same deadline share one time budget.
func (f *Future[T]) AwaitUntil(ctx context.Context, deadline time.Time) Outcome[T] {
	select {
	case <-f.done:
		return Outcome[T]{Value: f.value, Err: f.err}
	default:
	}

	wait := time.Until(deadline)
	if wait <= 0 {
		return Outcome[T]{Pending: true}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-f.done:
		return Outcome[T]{Value: f.value, Err: f.err}
	case <-timer.C:
		return Outcome[T]{Pending: true}
	case <-ctx.Done():
		return Outcome[T]{Pending: true, Err: ctx.Err()}
	}
}
