//go:build !unix

package funnel

import "syscall"

// HardExit ends the process without running deferred functions or cleanup
// hooks.
func HardExit() {
	syscall.Exit(abortExitCode)
}
