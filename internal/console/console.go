// Package console is the terminal presentation layer: it owns stdin, feeds
// command lines to the shell and renders modal prompts.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/dotcommander/cardshell/internal/dispatch"
)

// ANSI color constants.
const (
	colorReset = "\033[0m"
	colorBold  = "\033[1m"
	colorDim   = "\033[2m"
	colorRed   = "\033[31m"
	colorCyan  = "\033[36m"
)

var (
	// ErrNoTerminal rejects a prompt nobody can answer.
	ErrNoTerminal = errors.New("no interactive terminal available")
	// ErrInputClosed rejects prompts once stdin has reached EOF.
	ErrInputClosed = errors.New("input closed")
)

// Mode selects the shape of a prompt.
type Mode int

const (
	// ModeAcknowledge shows a single acknowledgement.
	ModeAcknowledge Mode = iota
	// ModeContinueOrStop asks the user to continue or stop.
	ModeContinueOrStop
)

// Choice is the user's answer to a prompt.
type Choice int

const (
	ChoiceAcknowledged Choice = iota
	ChoiceContinue
	ChoiceStop
)

func (c Choice) String() string {
	switch c {
	case ChoiceAcknowledged:
		return "acknowledged"
	case ChoiceContinue:
		return "continue"
	case ChoiceStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Request describes a prompt.
type Request struct {
	Title   string
	Message string
	Mode    Mode
}

// Console reads lines from an input stream. A line goes to the most recent
// pending prompt if there is one, otherwise to the command handler.
type Console struct {
	in          io.Reader
	out         io.Writer
	interactive bool
	color       bool

	mu       sync.Mutex
	pending  []*ask
	closed   bool
	eof      chan struct{}
	outputMu sync.Mutex
}

// ask is a prompt waiting for its answer.
type ask struct {
	mode  Mode
	reply *dispatch.Promise[Choice]
}

// Option configures a Console.
type Option func(*Console)

// WithInteractive overrides terminal detection for prompts.
func WithInteractive(v bool) Option {
	return func(c *Console) { c.interactive = v }
}

// WithColor overrides color detection for output.
func WithColor(v bool) Option {
	return func(c *Console) { c.color = v }
}

// New returns a Console. Prompts are enabled when in is a terminal and
// colors when out is one, unless overridden by options.
func New(in io.Reader, out io.Writer, opts ...Option) *Console {
	c := &Console{
		in:          in,
		out:         out,
		interactive: isTerminal(in),
		color:       isTerminal(out),
		eof:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Interactive reports whether prompts can be answered.
func (c *Console) Interactive() bool { return c.interactive }

// ReadLoop reads lines until EOF or a read error, dispatching each one. It
// blocks and is meant to run on its own goroutine. Prompts still pending when
// input ends are rejected with ErrInputClosed.
func (c *Console) ReadLoop(handle func(line string)) error {
	defer c.closeInput()

	sc := bufio.NewScanner(c.in)
	for sc.Scan() {
		line := sc.Text()
		if a := c.newest(); a != nil {
			c.answer(a, line)
			continue
		}
		handle(line)
	}
	return sc.Err()
}

// Closed is closed once the input stream has ended.
func (c *Console) Closed() <-chan struct{} { return c.eof }

func (c *Console) closeInput() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	orphans := c.pending
	c.pending = nil
	close(c.eof)
	c.mu.Unlock()

	for _, a := range orphans {
		a.reply.Reject(ErrInputClosed)
	}
}

func (c *Console) newest() *ask {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.pending); n > 0 {
		return c.pending[n-1]
	}
	return nil
}

// drop removes a from the pending stack and reports whether it was there.
// Only the caller that dropped a may settle it.
func (c *Console) drop(a *ask) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.pending {
		if p == a {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Console) answer(a *ask, line string) {
	choice := ChoiceAcknowledged
	if a.mode == ModeContinueOrStop {
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "c", "continue", "y", "yes":
			choice = ChoiceContinue
		case "s", "stop", "n", "no":
			choice = ChoiceStop
		default:
			c.Printf("Please answer 'continue' or 'stop'.\n%s", c.answerHint(a.mode))
			return
		}
	}
	if c.drop(a) {
		a.reply.Resolve(choice)
	}
}

// Ask renders req and returns a promise settled by the input reader once an
// acceptable answer arrives. It never blocks, so the UI loop keeps running
// while the user thinks and a later prompt can be stacked on top; the newest
// prompt receives the next line. The reply slot is registered before any text
// is shown, so a line typed in response to the visible prompt always reaches
// it. Cancelling ctx withdraws the prompt.
func (c *Console) Ask(ctx context.Context, req Request) *dispatch.Promise[Choice] {
	if !c.interactive {
		return dispatch.Rejected[Choice](ErrNoTerminal)
	}

	a := &ask{mode: req.Mode, reply: dispatch.NewPromise[Choice]()}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return dispatch.Rejected[Choice](ErrInputClosed)
	}
	c.pending = append(c.pending, a)
	c.mu.Unlock()

	c.Printf("%s", c.renderPrompt(req))
	context.AfterFunc(ctx, func() {
		if c.drop(a) {
			a.reply.Reject(ctx.Err())
		}
	})
	return a.reply
}

func (c *Console) renderPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(c.colorize(colorBold+colorRed, "== "+req.Title+" =="))
	b.WriteString("\n")
	b.WriteString(req.Message)
	b.WriteString("\n")
	b.WriteString(c.answerHint(req.Mode))
	return b.String()
}

func (c *Console) answerHint(m Mode) string {
	if m == ModeAcknowledge {
		return c.colorize(colorDim, "Press Enter to close > ")
	}
	return c.colorize(colorDim, "[c]ontinue / [s]top > ")
}

func (c *Console) colorize(code, s string) string {
	if !c.color {
		return s
	}
	return code + s + colorReset
}

// Printf writes formatted output. Safe for concurrent use.
func (c *Console) Printf(format string, args ...any) {
	c.outputMu.Lock()
	defer c.outputMu.Unlock()
	_, _ = fmt.Fprintf(c.out, format, args...)
}

// Heading writes a highlighted line.
func (c *Console) Heading(s string) {
	c.Printf("%s\n", c.colorize(colorBold+colorCyan, s))
}

// Writer returns a writer that serialises with Printf.
func (c *Console) Writer() io.Writer { return lockedWriter{c} }

type lockedWriter struct{ c *Console }

func (w lockedWriter) Write(p []byte) (int, error) {
	w.c.outputMu.Lock()
	defer w.c.outputMu.Unlock()
	return w.c.out.Write(p)
}
