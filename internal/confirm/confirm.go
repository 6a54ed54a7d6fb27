// Package confirm asks the user for a continue/terminate decision by showing
// a modal prompt on the UI loop, whichever goroutine is asking.
package confirm

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dotcommander/cardshell/internal/console"
	"github.com/dotcommander/cardshell/internal/dispatch"
)

// Outcome is the decision produced by a confirmation.
type Outcome int

const (
	Continue Outcome = iota
	Terminate
)

func (o Outcome) String() string {
	if o == Terminate {
		return "terminate"
	}
	return "continue"
}

// Dispatcher runs work on the UI loop and waits for it. Await must keep the
// loop serving other work when called from the loop.
type Dispatcher interface {
	Do(ctx context.Context, fn func(context.Context) error) error
	Await(ctx context.Context, done <-chan struct{}) error
}

// Prompter renders a modal prompt and returns its pending answer. Ask is
// only called on the UI loop and must not block.
type Prompter interface {
	Ask(ctx context.Context, req console.Request) *dispatch.Promise[console.Choice]
}

// Confirmer shows prompts through a Dispatcher.
type Confirmer struct {
	gw     Dispatcher
	prompt Prompter
	log    *slog.Logger
}

// Option configures a Confirmer.
type Option func(*Confirmer)

// WithLogger sets the logger used for prompt failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Confirmer) { c.log = l }
}

// New returns a Confirmer that displays prompts with p on the loop behind gw.
func New(gw Dispatcher, p Prompter, opts ...Option) *Confirmer {
	c := &Confirmer{gw: gw, prompt: p, log: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Confirm shows message and returns the user's decision. A fatal prompt only
// offers acknowledgement and always yields Terminate.
//
// When the prompt cannot be shown or answered the returned error is non-nil
// and the outcome fails open: Continue for non-fatal prompts. For fatal
// prompts the outcome is Terminate and the caller enforces it.
func (c *Confirmer) Confirm(ctx context.Context, message, title string, fatal bool) (Outcome, error) {
	mode := console.ModeContinueOrStop
	if fatal {
		mode = console.ModeAcknowledge
	}

	choice, err := c.ask(ctx, console.Request{Title: title, Message: message, Mode: mode})
	if err != nil {
		c.log.Warn("confirmation prompt not shown", "title", title, "fatal", fatal, "error", err.Error())
		if fatal {
			return Terminate, err
		}
		return Continue, err
	}

	if fatal || choice == console.ChoiceStop {
		return Terminate, nil
	}
	return Continue, nil
}

// ask renders the prompt on the loop, then waits for the answer without
// holding the loop, so a fatal prompt can still be shown over this one.
func (c *Confirmer) ask(ctx context.Context, req console.Request) (console.Choice, error) {
	var reply *dispatch.Promise[console.Choice]
	err := c.gw.Do(ctx, func(ctx context.Context) error {
		reply = c.prompt.Ask(ctx, req)
		if reply == nil {
			return errNoReply
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := c.gw.Await(ctx, reply.Done()); err != nil {
		return 0, err
	}
	return reply.Result()
}

var errNoReply = errors.New("confirm: prompter returned no reply")
