package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

type promptResult struct {
	choice Choice
	err    error
}

type harness struct {
	c     *Console
	in    *io.PipeWriter
	out   *syncBuffer
	lines chan string
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	pr, pw := io.Pipe()
	out := &syncBuffer{}
	h := &harness{
		c:     New(pr, out, append([]Option{WithInteractive(true)}, opts...)...),
		in:    pw,
		out:   out,
		lines: make(chan string, 16),
	}
	go func() { _ = h.c.ReadLoop(func(line string) { h.lines <- line }) }()
	t.Cleanup(func() { _ = pw.Close() })
	return h
}

func (h *harness) prompt(ctx context.Context, req Request) <-chan promptResult {
	res := make(chan promptResult, 1)
	reply := h.c.Ask(ctx, req)
	go func() {
		<-reply.Done()
		ch, err := reply.Result()
		res <- promptResult{choice: ch, err: err}
	}()
	return res
}

func (h *harness) waitPending(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		h.c.mu.Lock()
		defer h.c.mu.Unlock()
		return len(h.c.pending) > 0
	}, 2*time.Second, 5*time.Millisecond)
}

func (h *harness) send(t *testing.T, line string) {
	t.Helper()
	_, err := io.WriteString(h.in, line+"\n")
	require.NoError(t, err)
}

func TestPrompt_ContinueOrStop(t *testing.T) {
	tests := []struct {
		answer string
		want   Choice
	}{
		{"c", ChoiceContinue},
		{"Continue", ChoiceContinue},
		{"yes", ChoiceContinue},
		{"s", ChoiceStop},
		{" STOP ", ChoiceStop},
		{"n", ChoiceStop},
	}
	for _, tc := range tests {
		t.Run(tc.answer, func(t *testing.T) {
			h := newHarness(t)
			res := h.prompt(context.Background(), Request{Title: "Oops", Message: "boom", Mode: ModeContinueOrStop})
			h.waitPending(t)
			h.send(t, tc.answer)

			r := <-res
			require.NoError(t, r.err)
			assert.Equal(t, tc.want, r.choice)
			assert.Contains(t, h.out.String(), "== Oops ==")
			assert.Contains(t, h.out.String(), "[c]ontinue / [s]top")
		})
	}
}

func TestPrompt_AsksAgainOnUnknownAnswer(t *testing.T) {
	h := newHarness(t)
	res := h.prompt(context.Background(), Request{Title: "Oops", Message: "boom", Mode: ModeContinueOrStop})
	h.waitPending(t)
	h.send(t, "maybe")
	require.Eventually(t, func() bool {
		return strings.Contains(h.out.String(), "Please answer 'continue' or 'stop'.")
	}, 2*time.Second, 5*time.Millisecond)
	h.waitPending(t)
	h.send(t, "stop")

	r := <-res
	require.NoError(t, r.err)
	assert.Equal(t, ChoiceStop, r.choice)
	assert.Contains(t, h.out.String(), "Please answer 'continue' or 'stop'.")
}

func TestPrompt_AcknowledgeAcceptsAnyLine(t *testing.T) {
	h := newHarness(t)
	res := h.prompt(context.Background(), Request{Title: "Fatal", Message: "gone", Mode: ModeAcknowledge})
	h.waitPending(t)
	h.send(t, "")

	r := <-res
	require.NoError(t, r.err)
	assert.Equal(t, ChoiceAcknowledged, r.choice)
	assert.Contains(t, h.out.String(), "Press Enter to close")
}

func TestPrompt_NonInteractive(t *testing.T) {
	c := New(strings.NewReader(""), io.Discard, WithInteractive(false))
	_, err := c.Ask(context.Background(), Request{Mode: ModeAcknowledge}).Result()
	require.ErrorIs(t, err, ErrNoTerminal)
}

func TestPrompt_InputClosed(t *testing.T) {
	h := newHarness(t)
	res := h.prompt(context.Background(), Request{Mode: ModeContinueOrStop})
	h.waitPending(t)
	require.NoError(t, h.in.Close())

	r := <-res
	require.ErrorIs(t, r.err, ErrInputClosed)
}

func TestPrompt_ContextDeadline(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	r := <-h.prompt(ctx, Request{Mode: ModeAcknowledge})
	require.ErrorIs(t, r.err, context.DeadlineExceeded)

	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	assert.Empty(t, h.c.pending)
}

func TestAsk_AfterInputClosed(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.in.Close())
	<-h.c.Closed()

	_, err := h.c.Ask(context.Background(), Request{Mode: ModeAcknowledge}).Result()
	require.ErrorIs(t, err, ErrInputClosed)
}

func TestAsk_NewestPromptGetsNextLine(t *testing.T) {
	h := newHarness(t)
	older := h.prompt(context.Background(), Request{Title: "Unexpected error", Mode: ModeContinueOrStop})
	newer := h.prompt(context.Background(), Request{Title: "Fatal error", Mode: ModeAcknowledge})
	assert.Contains(t, h.out.String(), "== Fatal error ==")

	h.send(t, "")
	r := <-newer
	require.NoError(t, r.err)
	assert.Equal(t, ChoiceAcknowledged, r.choice)

	select {
	case <-older:
		t.Fatal("older prompt answered by a line meant for the newer one")
	case <-time.After(20 * time.Millisecond):
	}

	h.send(t, "continue")
	r = <-older
	require.NoError(t, r.err)
	assert.Equal(t, ChoiceContinue, r.choice)
	assert.NotContains(t, h.out.String(), "Please answer")
}

func TestReadLoop_RoutesLinesToHandlerWithoutPrompt(t *testing.T) {
	h := newHarness(t)
	h.send(t, "decks")
	h.send(t, "flip 2")

	assert.Equal(t, "decks", <-h.lines)
	assert.Equal(t, "flip 2", <-h.lines)
}

func TestColorize(t *testing.T) {
	plain := New(strings.NewReader(""), io.Discard, WithColor(false))
	assert.Equal(t, "x", plain.colorize(colorRed, "x"))

	colored := New(strings.NewReader(""), io.Discard, WithColor(true))
	assert.Equal(t, colorRed+"x"+colorReset, colored.colorize(colorRed, "x"))
}
