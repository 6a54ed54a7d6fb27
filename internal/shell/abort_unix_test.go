//go:build unix

package shell

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/cardshell/internal/funnel"
	"github.com/dotcommander/cardshell/internal/shutdown"
)

const abortDirEnv = "CARDSHELL_ABORT_DIR"

// TestThreadFault_Child runs a session in the re-executed test binary and
// crashes a detached worker. It does nothing unless abortDirEnv is set.
func TestThreadFault_Child(t *testing.T) {
	dir := os.Getenv(abortDirEnv)
	if dir == "" {
		t.Skip("runs only as a child process")
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cleanup := shutdown.New(time.Second, log)
	cleanup.Register("marker", func(context.Context) error {
		return os.WriteFile(filepath.Join(dir, "hook"), []byte("ran"), 0o600)
	})

	pr, pw := io.Pipe()
	interactive := false
	sh := New(Options{
		In:          pr,
		Out:         io.Discard,
		Interactive: &interactive,
		DeckDir:     dir,
		Funnel:      funnel.DefaultConfig(),
		Cleanup:     cleanup,
		Log:         log,
	})
	go func() { _, _ = io.WriteString(pw, "fault thread\n") }()

	_, err := sh.Run(context.Background())
	require.NoError(t, err)
	t.Fatal("session returned after a fatal fault")
}

func TestThreadFault_KillsProcessWithoutCleanup(t *testing.T) {
	dir := t.TempDir()
	cmd := exec.Command(os.Args[0], "-test.run=^TestThreadFault_Child$", "-test.count=1")
	cmd.Env = append(os.Environ(), abortDirEnv+"="+dir)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	require.True(t, ok)
	require.True(t, status.Signaled(), "child exited with %d: %s", exitErr.ExitCode(), stderr.String())
	assert.Equal(t, syscall.SIGKILL, status.Signal())

	assert.NoFileExists(t, filepath.Join(dir, "hook"))
	assert.Contains(t, stderr.String(), "hard termination")
}
