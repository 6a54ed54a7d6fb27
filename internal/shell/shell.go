// Package shell is the interactive card browser. It owns the UI loop and
// wires the fault funnel, the worker runtime and the catalog together.
package shell

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dotcommander/cardshell/internal/board"
	"github.com/dotcommander/cardshell/internal/confirm"
	"github.com/dotcommander/cardshell/internal/console"
	"github.com/dotcommander/cardshell/internal/deck"
	"github.com/dotcommander/cardshell/internal/dispatch"
	"github.com/dotcommander/cardshell/internal/fault"
	"github.com/dotcommander/cardshell/internal/funnel"
	"github.com/dotcommander/cardshell/internal/models"
	"github.com/dotcommander/cardshell/internal/shutdown"
	"github.com/dotcommander/cardshell/internal/worker"
)

// ExitInterrupted is returned by Run when its context is cancelled.
const ExitInterrupted = 130

// Options configures a Shell.
type Options struct {
	In  io.Reader
	Out io.Writer

	// Interactive forces prompts on or off. Nil means detect a terminal.
	Interactive *bool
	// Color forces colored output on or off. Nil means detect a terminal.
	Color *bool

	DeckDir    string
	DB         *sql.DB
	Funnel     funnel.Config
	MaxWorkers int
	// Watch rescans decks when the deck directory changes.
	Watch bool

	// Cleanup runs after the UI loop ends. Hooks registered by the caller
	// run after the shell's own.
	Cleanup *shutdown.Manager
	// Abort replaces the hard kill on fatal faults. Tests only.
	Abort func(rec fault.Record, shown bool)

	Log *slog.Logger
}

// Shell is one interactive session. Fields marked loop-only are touched
// exclusively from the UI loop.
type Shell struct {
	opts Options
	log  *slog.Logger

	gw  *dispatch.Gateway
	con *console.Console
	rt  *worker.Runtime
	fn  *funnel.Funnel

	bg     context.Context
	cancel context.CancelFunc

	decks []models.Deck // loop-only
	board *board.Board  // loop-only

	inflight atomic.Int64
	exitOnce sync.Once
	exitCode int
}

// New prepares a session. Nothing runs until Run.
func New(opts Options) *Shell {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Funnel == (funnel.Config{}) {
		opts.Funnel = funnel.DefaultConfig()
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = worker.DefaultMaxWorkers
	}
	if opts.Cleanup == nil {
		opts.Cleanup = shutdown.New(shutdown.DefaultTimeout, opts.Log)
	}

	var conOpts []console.Option
	if opts.Interactive != nil {
		conOpts = append(conOpts, console.WithInteractive(*opts.Interactive))
	}
	if opts.Color != nil {
		conOpts = append(conOpts, console.WithColor(*opts.Color))
	}

	s := &Shell{opts: opts, log: opts.Log}
	s.gw = dispatch.New(dispatch.WithLogger(opts.Log))
	s.con = console.New(opts.In, opts.Out, conOpts...)
	s.rt = worker.NewRuntime(opts.MaxWorkers, worker.WithLogger(opts.Log))
	s.fn = funnel.New(opts.Funnel,
		confirm.New(s.gw, s.con, confirm.WithLogger(opts.Log)),
		funnel.WithTerminator(terminator{s: s, hard: funnel.ExitTerminator{Log: opts.Log}}),
		funnel.WithLogger(opts.Log),
	)
	s.fn.Install(s.gw, s.rt)
	return s
}

// Run drives the session on the calling goroutine until quit, end of input,
// a Terminate decision or ctx cancellation. It returns the exit code.
func (s *Shell) Run(ctx context.Context) (int, error) {
	s.bg, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	s.opts.Cleanup.Register("background", func(context.Context) error {
		s.cancel()
		return nil
	})
	s.opts.Cleanup.Register("pending writes", shutdown.WaitIdle(func() bool {
		return s.inflight.Load() == 0
	}, 10*time.Millisecond))

	s.rt.Go("console", func() {
		err := s.con.ReadLoop(func(line string) {
			s.gw.Post(func(ctx context.Context) { s.handle(ctx, line) })
		})
		if err != nil {
			s.log.Warn("console input failed", "error", err.Error())
		}
		s.gw.Post(func(context.Context) { s.finish(0) })
	})

	if s.opts.Watch {
		w := deck.NewWatcher(s.opts.DeckDir, func() {
			s.gw.Post(func(context.Context) { s.rescan() })
		}, s.log)
		s.rt.Go("deck watcher", func() {
			if err := w.Run(s.bg); err != nil {
				s.log.Warn("deck watcher stopped", "error", err.Error())
			}
		})
	}

	s.gw.Post(func(context.Context) {
		s.con.Heading("cardshell")
		s.con.Printf("Type 'help' for commands.\n")
		s.rescan()
	})

	runErr := s.gw.Run(ctx)

	if err := s.opts.Cleanup.Shutdown(); err != nil {
		s.log.Warn("cleanup incomplete", "error", err.Error())
	}

	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
		s.finish(ExitInterrupted)
		s.log.Info("interrupted")
		return s.code(), nil
	}
	if runErr != nil {
		return 1, runErr
	}
	return s.code(), nil
}

// finish records the first exit code and stops the loop.
func (s *Shell) finish(code int) {
	s.exitOnce.Do(func() { s.exitCode = code })
	s.gw.Stop()
}

func (s *Shell) code() int {
	s.exitOnce.Do(func() {})
	return s.exitCode
}

// terminator routes graceful decisions back into the session. Aborts go
// straight to hard, which never runs the session's cleanup.
type terminator struct {
	s    *Shell
	hard funnel.Terminator
}

func (t terminator) Shutdown(code int) { t.s.finish(code) }

func (t terminator) Abort(rec fault.Record, shown bool) {
	if t.s.opts.Abort != nil {
		t.s.log.Error("hard termination", "fault_id", rec.ID, "shown", shown)
		t.s.opts.Abort(rec, shown)
		return
	}
	t.hard.Abort(rec, shown)
}
