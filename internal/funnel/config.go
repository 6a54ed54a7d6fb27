package funnel

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the funnel's tunables.
type Config struct {
	// NotifyTimeout bounds how long a process fault waits for the fatal
	// prompt before terminating anyway.
	NotifyTimeout time.Duration
	// UIFaultExitCode is used when the user stops after a UI loop fault.
	UIFaultExitCode int
	// TaskFaultExitCode is used when the user stops after an unobserved
	// task fault.
	TaskFaultExitCode int
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		NotifyTimeout:     30 * time.Second,
		UIFaultExitCode:   3,
		TaskFaultExitCode: 4,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	var errs []error
	if c.NotifyTimeout <= 0 {
		errs = append(errs, fmt.Errorf("notify timeout must be positive, got %s", c.NotifyTimeout))
	}
	if !validExitCode(c.UIFaultExitCode) {
		errs = append(errs, fmt.Errorf("ui fault exit code must be in 1..125, got %d", c.UIFaultExitCode))
	}
	if !validExitCode(c.TaskFaultExitCode) {
		errs = append(errs, fmt.Errorf("task fault exit code must be in 1..125, got %d", c.TaskFaultExitCode))
	}
	if c.UIFaultExitCode == c.TaskFaultExitCode {
		errs = append(errs, fmt.Errorf("ui and task fault exit codes must differ, both are %d", c.UIFaultExitCode))
	}
	return errors.Join(errs...)
}

// Codes above 125 are reserved by shells for signals and exec failures.
func validExitCode(code int) bool {
	return code >= 1 && code <= 125
}
