package dispatch

import (
	"context"
	"sync"

	"github.com/dotcommander/cardshell/internal/fault"
)

// Promise is a single-assignment result that completes asynchronously.
type Promise[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

// NewPromise returns an unsettled promise.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Resolved returns a promise already settled with v.
func Resolved[T any](v T) *Promise[T] {
	p := NewPromise[T]()
	p.Resolve(v)
	return p
}

// Rejected returns a promise already settled with err.
func Rejected[T any](err error) *Promise[T] {
	p := NewPromise[T]()
	p.Reject(err)
	return p
}

// Async runs fn on a new goroutine and settles the promise with its result.
// The loop marker is stripped from ctx first. A panic in fn rejects the
// promise with *fault.PanicError.
func Async[T any](ctx context.Context, fn func(context.Context) (T, error)) *Promise[T] {
	p := NewPromise[T]()
	ctx = Detach(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.Reject(fault.NewPanicError(r))
			}
		}()
		v, err := fn(ctx)
		p.settle(v, err)
	}()
	return p
}

// Resolve settles the promise with v. Only the first settlement wins.
func (p *Promise[T]) Resolve(v T) bool {
	return p.settle(v, nil)
}

// Reject settles the promise with err. Only the first settlement wins.
func (p *Promise[T]) Reject(err error) bool {
	var zero T
	return p.settle(zero, err)
}

func (p *Promise[T]) settle(v T, err error) bool {
	won := false
	p.once.Do(func() {
		p.val, p.err = v, err
		won = true
		close(p.done)
	})
	return won
}

// Done is closed once the promise has settled.
func (p *Promise[T]) Done() <-chan struct{} { return p.done }

// Result blocks until the promise has settled and returns its value.
func (p *Promise[T]) Result() (T, error) {
	<-p.done
	return p.val, p.err
}
