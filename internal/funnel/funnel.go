// Package funnel is the single sink for unhandled failures. It intercepts
// UI loop faults, unobserved task faults and process faults, asks the user on
// the UI loop, and decides whether the process keeps running.
package funnel

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dotcommander/cardshell/internal/confirm"
	"github.com/dotcommander/cardshell/internal/dispatch"
	"github.com/dotcommander/cardshell/internal/fault"
	"github.com/dotcommander/cardshell/internal/worker"
)

const (
	titleUIFault      = "Unexpected error"
	titleTaskFault    = "Background task failed"
	titleProcessFault = "Fatal error"

	askContinue = "Continue running the application?"
	cannotGoOn  = "The application cannot continue and will now close."
)

// Confirmer shows a prompt and returns the user's decision.
type Confirmer interface {
	Confirm(ctx context.Context, message, title string, fatal bool) (confirm.Outcome, error)
}

// UIHooks is the part of the UI loop the funnel hooks into.
type UIHooks interface {
	SetFaultHandler(h dispatch.FaultHandler)
}

// WorkerHooks is the part of the worker runtime the funnel hooks into.
type WorkerHooks interface {
	SetUnobservedHandler(h worker.UnobservedHandler)
	SetPanicHandler(h worker.PanicHandler)
}

// Funnel routes every failure class to its policy.
type Funnel struct {
	cfg     Config
	confirm Confirmer
	term    Terminator
	log     *slog.Logger

	// fatal latches on the first process fault.
	fatal atomic.Bool

	uiLane   *lane
	taskLane *lane
}

// Option configures a Funnel.
type Option func(*Funnel)

// WithTerminator replaces the process-exiting terminator.
func WithTerminator(t Terminator) Option {
	return func(f *Funnel) { f.term = t }
}

// WithLogger sets the funnel logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Funnel) { f.log = l }
}

// New returns a funnel applying cfg. Prompts are shown through c.
func New(cfg Config, c Confirmer, opts ...Option) *Funnel {
	f := &Funnel{
		cfg:      cfg,
		confirm:  c,
		log:      slog.Default(),
		uiLane:   &lane{},
		taskLane: &lane{},
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.term == nil {
		f.term = ExitTerminator{Log: f.log}
	}
	return f
}

// Install registers the three interceptors.
func (f *Funnel) Install(ui UIHooks, rt WorkerHooks) {
	ui.SetFaultHandler(f.HandleUIFault)
	rt.SetUnobservedHandler(f.HandleTaskFault)
	rt.SetPanicHandler(f.HandleProcessFault)
}

// Wait blocks until every pending UI and task confirmation has been decided.
func (f *Funnel) Wait() {
	f.uiLane.wait()
	f.taskLane.wait()
}

// HandleUIFault runs on the UI loop. It marks the fault handled and returns
// without waiting for the user.
func (f *Funnel) HandleUIFault(ctx context.Context, ev *fault.UIFault) {
	ev.Handled = true
	rec := fault.NewRecord(fault.ClassUIContext, ev.Err)
	f.log.Error("fault intercepted", rec.LogAttrs()...)

	msg := fmt.Sprintf("An unexpected error occurred:\n\n%s\n\n%s", rec.Summary, askContinue)
	cctx := context.WithoutCancel(dispatch.Detach(ctx))
	f.uiLane.enqueue(func() {
		f.decide(cctx, rec, msg, titleUIFault, f.cfg.UIFaultExitCode)
	})
}

// HandleTaskFault marks the fault observed and asks the user in the
// background, listing every cause in order.
func (f *Funnel) HandleTaskFault(ev *fault.TaskFault) {
	ev.SetObserved()
	rec := fault.NewRecord(fault.ClassUnobservedTask, ev.Err)
	f.log.Error("fault intercepted", rec.LogAttrs()...)

	msg := fmt.Sprintf("A background task failed with %d error(s):\n\n%s\n\n%s",
		len(rec.Causes), fault.Enumerate(rec.Causes), askContinue)
	f.taskLane.enqueue(func() {
		f.decide(context.Background(), rec, msg, titleTaskFault, f.cfg.TaskFaultExitCode)
	})
}

func (f *Funnel) decide(ctx context.Context, rec fault.Record, msg, title string, code int) {
	outcome, err := f.confirm.Confirm(ctx, msg, title, false)
	attrs := append(rec.LogAttrs(), "outcome", outcome.String(), "shown", err == nil)
	if err != nil {
		attrs = append(attrs, "prompt_error", err.Error())
	}
	f.log.Info("fault resolved", attrs...)

	if outcome == confirm.Terminate {
		f.term.Shutdown(code)
	}
}

// HandleProcessFault never lets the process continue. The first process
// fault shows the fatal prompt and waits for it at most NotifyTimeout; any
// later one aborts at once without a prompt.
func (f *Funnel) HandleProcessFault(ev *fault.ProcessFault) {
	rec := fault.NewRecord(fault.ClassProcess, ev.Err)
	if f.fatal.Swap(true) {
		f.log.Error("reentrant process fault", append(rec.LogAttrs(), "source", ev.Source)...)
		f.term.Abort(rec, false)
		return
	}
	f.log.Error("fault intercepted", append(rec.LogAttrs(), "source", ev.Source)...)

	where := ""
	if ev.Source != "" {
		where = " in " + ev.Source
	}
	msg := fmt.Sprintf("A fatal error occurred%s:\n\n%s\n\n%s", where, rec.Summary, cannotGoOn)

	ctx, cancel := context.WithTimeout(context.Background(), f.cfg.NotifyTimeout)
	defer cancel()

	var promptErr error
	released := make(chan struct{})
	go func() {
		defer close(released)
		_, promptErr = f.confirm.Confirm(ctx, msg, titleProcessFault, true)
	}()

	timer := time.NewTimer(f.cfg.NotifyTimeout)
	defer timer.Stop()

	shown := false
	select {
	case <-released:
		shown = promptErr == nil
		if shown {
			f.log.Info("fatal prompt acknowledged", "fault_id", rec.ID)
		} else {
			f.log.Warn("fatal prompt not shown", "fault_id", rec.ID, "error", promptErr.Error())
		}
	case <-timer.C:
		f.log.Warn("notification deadline exceeded", "fault_id", rec.ID, "timeout", f.cfg.NotifyTimeout.String())
	}
	f.term.Abort(rec, shown)
}
