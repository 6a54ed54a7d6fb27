package funnel

import (
	"log/slog"
	"os"

	"github.com/dotcommander/cardshell/internal/fault"
	"github.com/dotcommander/cardshell/internal/shutdown"
)

// abortExitCode is reported where the platform cannot kill the process with
// a signal. It matches the status of a SIGABRT death.
const abortExitCode = 134

// Terminator carries out the funnel's decisions.
type Terminator interface {
	// Shutdown exits gracefully with code. Cleanup may run.
	Shutdown(code int)
	// Abort ends the process immediately. Implementations used outside
	// tests must not return.
	Abort(rec fault.Record, shown bool)
}

// ExitTerminator exits the process directly. Shutdown runs the cleanup
// manager first; Abort skips all cleanup, deferred calls included.
type ExitTerminator struct {
	Cleanup *shutdown.Manager
	Log     *slog.Logger
}

func (t ExitTerminator) Shutdown(code int) {
	if t.Cleanup != nil {
		if err := t.Cleanup.Shutdown(); err != nil {
			t.logger().Warn("cleanup incomplete", "error", err.Error())
		}
	}
	os.Exit(code)
}

func (t ExitTerminator) Abort(rec fault.Record, shown bool) {
	t.logger().Error("hard termination", "fault_id", rec.ID, "shown", shown)
	HardExit()
}

func (t ExitTerminator) logger() *slog.Logger {
	if t.Log != nil {
		return t.Log
	}
	return slog.Default()
}
