// Package demo implements the standalone colorized demo harness for cardshell.
package demo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// ANSI color constants.
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorCyan   = "\033[36m"
	colorWhite  = "\033[37m"
	colorBgBlue = "\033[44m"
)

// exitKilled is reported for a session that died from a signal.
const exitKilled = -1

// waitTimeout bounds every wait for session output.
const waitTimeout = 15 * time.Second

// Runner holds the demo execution state.
type Runner struct {
	binPath string
	dbPath  string
	deckDir string
	home    string
	out     io.Writer
	color   bool
	fast    bool
}

// NewRunner creates a new demo runner. binPath is made absolute; home
// isolates the binary's config directory.
func NewRunner(binPath, workDir string, out io.Writer, fast bool) *Runner {
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd())
	}
	if abs, err := filepath.Abs(binPath); err == nil {
		binPath = abs
	}
	return &Runner{
		binPath: binPath,
		dbPath:  filepath.Join(workDir, "catalog", "cardshell-demo.db"),
		deckDir: filepath.Join(workDir, "decks"),
		home:    filepath.Join(workDir, "home"),
		out:     out,
		color:   color,
		fast:    fast,
	}
}

func (r *Runner) colorize(code, s string) string {
	if !r.color {
		return s
	}
	return code + s + colorReset
}

// printAct prints an act header.
func (r *Runner) printAct(number int, name string) {
	header := fmt.Sprintf("  Act %d: %s  ", number, name)
	if r.color {
		fmt.Fprintf(r.out, "\n%s%s%s\n", colorBold+colorBgBlue+colorWhite, header, colorReset)
	} else {
		fmt.Fprintf(r.out, "\n=== Act %d: %s ===\n", number, name)
	}
}

func (r *Runner) printNarration(lines []string) {
	for _, line := range lines {
		fmt.Fprintf(r.out, "  %s\n", r.colorize(colorWhite, line))
	}
	fmt.Fprintln(r.out)
}

func (r *Runner) printStep(name string) {
	fmt.Fprintf(r.out, "  %s %s\n", r.colorize(colorBold+colorCyan, "●"), r.colorize(colorBold+colorCyan, name))
}

func (r *Runner) printCommand(args []string) {
	fmt.Fprintf(r.out, "    %s\n", r.colorize(colorDim, "$ cardshell "+strings.Join(args, " ")))
}

func (r *Runner) printPass(detail string) {
	msg := r.colorize(colorGreen, "✓")
	if detail != "" {
		fmt.Fprintf(r.out, "    %s %s\n", msg, r.colorize(colorGreen, detail))
	} else {
		fmt.Fprintf(r.out, "    %s\n", msg)
	}
}

func (r *Runner) printFail(err error) {
	fmt.Fprintf(r.out, "    %s %s\n", r.colorize(colorRed, "✗"), r.colorize(colorRed, err.Error()))
}

func (r *Runner) printDetail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(r.out, "      %s\n", r.colorize(colorDim, msg))
}

// printInsight prints a post-step insight in a distinctive dim style.
func (r *Runner) printInsight(msg string) {
	if msg == "" {
		return
	}
	if r.color {
		fmt.Fprintf(r.out, "    %s %s\n", colorDim+colorWhite+"→"+colorReset, colorDim+colorWhite+msg+colorReset)
	} else {
		fmt.Fprintf(r.out, "    → %s\n", msg)
	}
}

func (r *Runner) command(args ...string) *exec.Cmd {
	fullArgs := append([]string{"--db-path", r.dbPath, "--deck-dir", r.deckDir}, args...)
	r.printCommand(args)
	cmd := exec.Command(r.binPath, fullArgs...)
	cmd.Env = append(os.Environ(), "HOME="+r.home, "CARDSHELL_PRETTY_JSON=0")
	return cmd
}

// parseLastJSON parses the last valid JSON line from multi-line output.
func parseLastJSON(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	lines := strings.Split(raw, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err == nil {
			return m, nil
		}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("parse JSON: %w (output: %s)", err, raw)
	}
	return m, nil
}

// cardshell runs a one-shot command and parses its JSON response.
func (r *Runner) cardshell(args ...string) (map[string]any, string, error) {
	cmd := r.command(args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	_ = cmd.Run()
	raw := strings.TrimSpace(stdout.String())
	if raw == "" {
		return nil, raw, nil
	}
	m, err := parseLastJSON(raw)
	if err != nil {
		return nil, raw, err
	}
	return m, raw, nil
}

// exchange is one scripted turn: wait until stdout (or stderr) holds waitFor
// at least count times, then type send. An empty waitFor sends at once.
type exchange struct {
	waitFor string
	count   int
	stderr  bool
	send    string
}

type sessionResult struct {
	code     int
	stdout   string
	stderr   string
	duration time.Duration
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// session runs "cardshell run" and plays script against it. Input is closed
// after the last exchange unless keepOpen is set.
func (r *Runner) session(args []string, script []exchange, keepOpen bool) (sessionResult, error) {
	cmd := r.command(append([]string{"run", "--no-watch"}, args...)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return sessionResult{}, err
	}
	var stdout, stderr lockedBuffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return sessionResult{}, err
	}
	var waitErr error
	exited := make(chan struct{})
	go func() {
		waitErr = cmd.Wait()
		close(exited)
	}()

	var scriptErr error
	for _, ex := range script {
		if ex.waitFor != "" {
			buf := &stdout
			if ex.stderr {
				buf = &stderr
			}
			if err := waitForOutput(buf, ex.waitFor, max(ex.count, 1), exited); err != nil {
				scriptErr = err
				break
			}
		}
		if _, err := io.WriteString(stdin, ex.send+"\n"); err != nil {
			scriptErr = fmt.Errorf("write %q: %w", ex.send, err)
			break
		}
	}
	if !keepOpen || scriptErr != nil {
		_ = stdin.Close()
	}

	select {
	case <-exited:
	case <-time.After(waitTimeout):
		_ = cmd.Process.Kill()
		<-exited
		scriptErr = errors.Join(scriptErr, errors.New("session did not exit in time"))
	}
	_ = stdin.Close()

	res := sessionResult{
		code:     exitCodeOf(waitErr),
		stdout:   stdout.String(),
		stderr:   stderr.String(),
		duration: time.Since(start),
	}
	return res, scriptErr
}

func waitForOutput(buf *lockedBuffer, substr string, count int, exited <-chan struct{}) error {
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if strings.Count(buf.String(), substr) >= count {
			return nil
		}
		select {
		case <-exited:
			if strings.Count(buf.String(), substr) >= count {
				return nil
			}
			return fmt.Errorf("session exited before %q appeared", substr)
		case <-time.After(20 * time.Millisecond):
		}
	}
	return fmt.Errorf("timed out waiting for %q", substr)
}

// exitCodeOf maps a Wait error to an exit status, exitKilled for signals.
func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return exitKilled
}

// mustSuccess returns an error if success != true.
func (r *Runner) mustSuccess(m map[string]any, raw string) error {
	if m == nil {
		return fmt.Errorf("nil response (raw: %s)", raw)
	}
	if m["success"] != true {
		return fmt.Errorf("success=false: %s", raw)
	}
	return nil
}

// getStr extracts a nested string field from the parsed JSON.
func getStr(m map[string]any, keys ...string) string {
	if s, ok := get(m, keys...).(string); ok {
		return s
	}
	return ""
}

// getNum extracts a nested number field from the parsed JSON.
func getNum(m map[string]any, keys ...string) int {
	if f, ok := get(m, keys...).(float64); ok {
		return int(f)
	}
	return -1
}

func get(m map[string]any, keys ...string) any {
	var cur any = m
	for _, k := range keys {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = mm[k]
	}
	return cur
}

// RunAll runs all acts in order, returning pass/fail counts.
func (r *Runner) RunAll(continueOnError bool) (passed, failed int) {
	ctx := &DemoContext{}

	for _, act := range BuildActs() {
		r.printAct(act.Number, act.Name)
		r.printNarration(act.Narration)

		for _, step := range act.Steps {
			r.printStep(step.Name)
			err := step.Fn(r, ctx)
			if err != nil {
				r.printFail(err)
				failed++
				if !continueOnError {
					fmt.Fprintf(r.out, "\n%s\n", r.colorize(colorRed+colorBold, "Stopped on first failure. Use --continue-on-error to proceed."))
					return passed, failed
				}
			} else {
				r.printPass("")
				r.printInsight(step.Insight)
				passed++
				if !r.fast {
					time.Sleep(2 * time.Second)
				}
			}
		}
	}

	return passed, failed
}
