// Package worker runs background work beside the UI loop: bounded pool tasks
// whose failures must be observed, and detached threads whose panics cannot
// be recovered by anyone but the process-fault handler.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/dotcommander/cardshell/internal/fault"
)

// DefaultMaxWorkers bounds pool tasks when no limit is configured.
const DefaultMaxWorkers = 8

// UnobservedHandler receives a failed task that was collected without anyone
// waiting for it. It runs on a runtime goroutine and must not block.
type UnobservedHandler func(ev *fault.TaskFault)

// PanicHandler receives process faults. It may block its own goroutine.
type PanicHandler func(ev *fault.ProcessFault)

// Runtime owns the worker pool and the fault hooks for background work.
type Runtime struct {
	sem *semaphore.Weighted
	log *slog.Logger

	mu           sync.RWMutex
	onUnobserved UnobservedHandler
	onPanic      PanicHandler
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the runtime logger.
func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) { rt.log = l }
}

// NewRuntime returns a runtime running at most maxWorkers pool tasks at once.
func NewRuntime(maxWorkers int, opts ...Option) *Runtime {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	rt := &Runtime{
		sem: semaphore.NewWeighted(int64(maxWorkers)),
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// SetUnobservedHandler installs the hook for unobserved task failures.
func (rt *Runtime) SetUnobservedHandler(h UnobservedHandler) {
	rt.mu.Lock()
	rt.onUnobserved = h
	rt.mu.Unlock()
}

// SetPanicHandler installs the hook for process faults.
func (rt *Runtime) SetPanicHandler(h PanicHandler) {
	rt.mu.Lock()
	rt.onPanic = h
	rt.mu.Unlock()
}

func (rt *Runtime) handlers() (UnobservedHandler, PanicHandler) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.onUnobserved, rt.onPanic
}

// Collect forces a garbage collection so that dropped task handles are
// noticed. Detection itself still happens asynchronously.
func (rt *Runtime) Collect() {
	runtime.GC()
}

// Go runs fn on a detached goroutine. A panic escaping fn is a process
// fault; without a panic handler it crashes the process.
func (rt *Runtime) Go(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				rt.raiseProcess(&fault.ProcessFault{Err: fault.NewPanicError(r), Source: name}, r)
			}
		}()
		fn()
	}()
}

func (rt *Runtime) raiseProcess(ev *fault.ProcessFault, r any) {
	_, h := rt.handlers()
	if h == nil {
		rt.log.Error("unhandled process fault", "source", ev.Source, "error", ev.Err.Error())
		panic(r)
	}
	h(ev)
}

// reportUnobserved runs once a dropped task handle has been collected.
func (rt *Runtime) reportUnobserved(done <-chan struct{}, outcome func() (error, bool)) {
	<-done
	err, observed := outcome()
	if err == nil || observed {
		return
	}

	ev := &fault.TaskFault{Err: err}
	if h, _ := rt.handlers(); h != nil {
		h(ev)
	}
	if ev.Observed() {
		return
	}
	rt.log.Error("unobserved task fault escalated", "error", err.Error())
	rt.raiseProcess(&fault.ProcessFault{Err: err, Source: "unobserved task"}, err)
}

// Handle is the untyped view of a Task used by WhenAll.
type Handle interface {
	Done() <-chan struct{}
	observe() error
}

// Task is the handle of a pool task. A task that fails and is dropped without
// Wait or Err being called is reported as an unobserved task fault.
type Task[T any] struct {
	st *state[T]
}

type state[T any] struct {
	done     chan struct{}
	val      T
	err      error
	observed atomic.Bool
}

func (st *state[T]) outcome() (error, bool) {
	return st.err, st.observed.Load()
}

// Start runs fn on the pool. A panic inside fn fails the task with a
// *fault.PanicError.
func Start[T any](ctx context.Context, rt *Runtime, fn func(context.Context) (T, error)) *Task[T] {
	return spawn(rt, func() (T, error) {
		if err := rt.sem.Acquire(ctx, 1); err != nil {
			var zero T
			return zero, err
		}
		defer rt.sem.Release(1)
		return fn(ctx)
	})
}

func spawn[T any](rt *Runtime, body func() (T, error)) *Task[T] {
	st := &state[T]{done: make(chan struct{})}
	t := &Task[T]{st: st}
	runtime.AddCleanup(t, func(st *state[T]) {
		go rt.reportUnobserved(st.done, st.outcome)
	}, st)

	go func() {
		defer close(st.done)
		defer func() {
			if r := recover(); r != nil {
				st.err = fault.NewPanicError(r)
			}
		}()
		st.val, st.err = body()
	}()
	return t
}

// Done is closed when the task has finished. It does not observe the result.
func (t *Task[T]) Done() <-chan struct{} { return t.st.done }

// Wait blocks until the task finishes or ctx is done, and marks the result
// as observed.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.st.done:
		t.st.observed.Store(true)
		return t.st.val, t.st.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Err returns the task's error once it has finished, marking it observed.
// Before completion it returns nil.
func (t *Task[T]) Err() error {
	select {
	case <-t.st.done:
		return t.observe()
	default:
		return nil
	}
}

func (t *Task[T]) observe() error {
	t.st.observed.Store(true)
	return t.st.err
}

// WhenAll finishes once every task has finished. Its error joins the child
// failures in argument order. It observes the children and does not occupy a
// pool slot.
func WhenAll(ctx context.Context, rt *Runtime, tasks ...Handle) *Task[struct{}] {
	return spawn(rt, func() (struct{}, error) {
		var errs []error
		for _, t := range tasks {
			select {
			case <-t.Done():
			case <-ctx.Done():
				return struct{}{}, ctx.Err()
			}
			if err := t.observe(); err != nil {
				errs = append(errs, err)
			}
		}
		return struct{}{}, errors.Join(errs...)
	})
}
