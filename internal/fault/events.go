package fault

// UIFault is handed to the UI loop's fault handler when work posted to the
// loop panics. Setting Handled stops the loop from re-raising the panic.
type UIFault struct {
	Err     error
	Handled bool
}

// TaskFault is raised when a failed background task is collected without
// anyone having observed its error.
type TaskFault struct {
	Err      error
	observed bool
}

// SetObserved marks the failure as dealt with so the worker runtime does not
// escalate it to a process fault.
func (f *TaskFault) SetObserved() { f.observed = true }

// Observed reports whether a handler took ownership of the failure.
func (f *TaskFault) Observed() bool { return f.observed }

// Causes returns the flattened list of underlying errors.
func (f *TaskFault) Causes() []error { return Flatten(f.Err) }

// ProcessFault is raised for failures the process cannot recover from, such
// as a panic escaping a detached goroutine.
type ProcessFault struct {
	Err    error
	Source string
}
