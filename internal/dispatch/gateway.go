// Package dispatch owns the UI loop: the single goroutine that is allowed to
// touch presentation state. Other goroutines marshal work onto it through the
// Gateway and are suspended until that work has completed on the loop.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dotcommander/cardshell/internal/fault"
)

// ErrContextUnavailable is returned when the UI loop has stopped, or stops
// while a caller is waiting for its work. Callers treat it as "cannot notify".
var ErrContextUnavailable = errors.New("ui context unavailable")

// ErrLoopRunning is returned by Run when the loop is already running.
var ErrLoopRunning = errors.New("ui loop already running")

// FaultHandler receives panics raised by work posted to the loop. It runs on
// the loop goroutine and must not block waiting for the loop.
type FaultHandler func(ctx context.Context, ev *fault.UIFault)

type loopKey struct{}

type item struct {
	ctx    context.Context
	fn     func(context.Context)
	posted bool
}

// Gateway wraps the UI loop. Create it once at startup and keep it for the
// life of the process.
type Gateway struct {
	mu    sync.Mutex
	queue []item
	wake  chan struct{}

	stop        chan struct{}
	stopOnce    sync.Once
	stopped     chan struct{}
	stoppedOnce sync.Once
	running     atomic.Bool

	handlerMu sync.RWMutex
	onFault   FaultHandler

	log *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithFaultHandler installs the handler for panics in posted work.
func WithFaultHandler(h FaultHandler) Option {
	return func(g *Gateway) { g.onFault = h }
}

// WithLogger sets the logger used by the loop.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

// New returns a Gateway whose loop is not yet running. Work may be queued
// before Run is called; it executes once the loop starts.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetFaultHandler replaces the handler for panics in posted work.
func (g *Gateway) SetFaultHandler(h FaultHandler) {
	g.handlerMu.Lock()
	g.onFault = h
	g.handlerMu.Unlock()
}

func (g *Gateway) faultHandler() FaultHandler {
	g.handlerMu.RLock()
	defer g.handlerMu.RUnlock()
	return g.onFault
}

// Run executes the loop on the calling goroutine until Stop is called or ctx
// is cancelled. The calling goroutine becomes the UI context.
func (g *Gateway) Run(ctx context.Context) error {
	if !g.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer g.closeStopped()

	base := context.WithValue(ctx, loopKey{}, g)
	for {
		select {
		case <-g.stop:
			return nil
		default:
		}

		if it, ok := g.next(); ok {
			g.exec(base, it)
			continue
		}

		select {
		case <-g.wake:
		case <-g.stop:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop asks the loop to return after the item it is currently running.
// Queued work that has not started is dropped and its callers receive
// ErrContextUnavailable. Stop is idempotent.
func (g *Gateway) Stop() {
	g.stopOnce.Do(func() { close(g.stop) })
	if !g.running.Load() {
		g.closeStopped()
	}
}

// Done is closed once the loop has exited.
func (g *Gateway) Done() <-chan struct{} { return g.stopped }

func (g *Gateway) closeStopped() {
	g.stoppedOnce.Do(func() { close(g.stopped) })
}

// CanRunHereNow reports whether ctx belongs to work currently executing on
// this gateway's loop.
func (g *Gateway) CanRunHereNow(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	owner, _ := ctx.Value(loopKey{}).(*Gateway)
	return owner == g
}

// Detach masks the loop marker on ctx. Use it before handing a loop context to
// another goroutine, otherwise that goroutine would be treated as the loop.
func Detach(ctx context.Context) context.Context {
	return context.WithValue(ctx, loopKey{}, (*Gateway)(nil))
}

// Post queues fn for the loop without waiting. A panic inside fn is a UI
// fault: it goes to the fault handler, and is re-raised on the loop if the
// handler does not mark it handled.
func (g *Gateway) Post(fn func(context.Context)) bool {
	return g.enqueue(item{fn: fn, posted: true})
}

// Do runs fn on the loop and returns its error. From the loop itself fn runs
// synchronously; from any other goroutine the caller is suspended until fn
// has completed. A panic in fn is returned as *fault.PanicError.
func (g *Gateway) Do(ctx context.Context, fn func(context.Context) error) error {
	if g.CanRunHereNow(ctx) {
		return runGuarded(ctx, fn)
	}

	done := make(chan struct{})
	var err error
	wctx := context.WithValue(ctx, loopKey{}, g)
	ok := g.enqueue(item{ctx: wctx, fn: func(lctx context.Context) {
		defer close(done)
		err = runGuarded(lctx, fn)
	}})
	if !ok {
		return ErrContextUnavailable
	}

	select {
	case <-done:
		return err
	case <-g.stopped:
		select {
		case <-done:
			return err
		default:
			return ErrContextUnavailable
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DoAsync runs fn on the loop and waits for the promise it returns to settle.
func (g *Gateway) DoAsync(ctx context.Context, fn func(context.Context) *Promise[struct{}]) error {
	_, err := CallAsync(ctx, g, fn)
	return err
}

// Call runs fn on the loop and returns its value.
func Call[T any](ctx context.Context, g *Gateway, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := g.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	})
	return out, err
}

// CallAsync runs fn on the loop and waits for the promise it returns. The
// caller resumes only when the inner operation has settled, not when it was
// merely scheduled.
func CallAsync[T any](ctx context.Context, g *Gateway, fn func(context.Context) *Promise[T]) (T, error) {
	var zero T
	p, err := Call(ctx, g, func(ctx context.Context) (*Promise[T], error) {
		inner := fn(ctx)
		if inner == nil {
			return nil, errNilPromise
		}
		return inner, nil
	})
	if err != nil {
		return zero, err
	}
	if err := g.Await(ctx, p.Done()); err != nil {
		return zero, err
	}
	return p.Result()
}

var errNilPromise = errors.New("dispatch: work returned a nil promise")

// Await blocks until done is closed. On the loop it keeps running queued work
// meanwhile, so an inner operation that needs the loop can still finish and
// nested waits stay possible. It returns ErrContextUnavailable if the loop
// stops first.
func (g *Gateway) Await(ctx context.Context, done <-chan struct{}) error {
	if !g.CanRunHereNow(ctx) {
		select {
		case <-done:
			return nil
		case <-g.stopped:
			select {
			case <-done:
				return nil
			default:
				return ErrContextUnavailable
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		select {
		case <-done:
			return nil
		default:
		}

		if it, ok := g.next(); ok {
			g.exec(ctx, it)
			continue
		}

		select {
		case <-done:
			return nil
		case <-g.wake:
		case <-g.stop:
			return ErrContextUnavailable
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (g *Gateway) enqueue(it item) bool {
	select {
	case <-g.stop:
		return false
	case <-g.stopped:
		return false
	default:
	}

	g.mu.Lock()
	g.queue = append(g.queue, it)
	g.mu.Unlock()

	select {
	case g.wake <- struct{}{}:
	default:
	}
	return true
}

func (g *Gateway) next() (item, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.queue) == 0 {
		return item{}, false
	}
	it := g.queue[0]
	g.queue[0] = item{}
	g.queue = g.queue[1:]
	return it, true
}

func (g *Gateway) exec(base context.Context, it item) {
	ctx := it.ctx
	if ctx == nil {
		ctx = base
	}
	if !it.posted {
		it.fn(ctx)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			g.raise(ctx, r)
		}
	}()
	it.fn(ctx)
}

// raise runs inside the deferred recover of posted work.
func (g *Gateway) raise(ctx context.Context, r any) {
	ev := &fault.UIFault{Err: fault.NewPanicError(r)}
	if h := g.faultHandler(); h != nil {
		h(ctx, ev)
	}
	if !ev.Handled {
		g.log.Error("unhandled ui fault", "error", ev.Err.Error())
		panic(r)
	}
}

func runGuarded(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fault.NewPanicError(r)
		}
	}()
	return fn(ctx)
}
