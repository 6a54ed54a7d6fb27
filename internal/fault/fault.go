// Package fault defines the failure taxonomy shared by the UI dispatch loop,
// the worker runtime and the exception funnel.
package fault

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"time"
)

// Class identifies where an unhandled failure was intercepted.
type Class int

const (
	// ClassUIContext is a failure raised on the UI loop itself.
	ClassUIContext Class = iota + 1
	// ClassUnobservedTask is a background task failure nobody waited for.
	ClassUnobservedTask
	// ClassProcess is a failure the process cannot continue from.
	ClassProcess
)

func (c Class) String() string {
	switch c {
	case ClassUIContext:
		return "ui_context"
	case ClassUnobservedTask:
		return "unobserved_task"
	case ClassProcess:
		return "process"
	default:
		return "unknown"
	}
}

// Record is the transient description of one intercepted failure. It is
// built at interception time and dropped once a decision has been made.
type Record struct {
	ID      string
	Class   Class
	Err     error
	Causes  []error
	Summary string
	At      time.Time
}

// NewRecord flattens err into its causes and formats the summary.
func NewRecord(class Class, err error) Record {
	causes := Flatten(err)
	summary := Enumerate(causes)
	if len(causes) == 1 {
		summary = Describe(causes[0])
	}
	return Record{
		ID:      generatePrefixedID("flt"),
		Class:   class,
		Err:     err,
		Causes:  causes,
		Summary: summary,
		At:      time.Now(),
	}
}

// LogAttrs returns slog key/value pairs describing the record.
func (r Record) LogAttrs() []any {
	attrs := []any{
		"fault_id", r.ID,
		"class", r.Class.String(),
		"causes", len(r.Causes),
	}
	if r.Err != nil {
		attrs = append(attrs, "error", r.Err.Error())
	}
	return attrs
}

// Flatten expands errors that aggregate several causes (anything with an
// Unwrap() []error method, such as errors.Join) into a flat list, depth
// first and in order. Single-cause wrapping is left intact.
func Flatten(err error) []error {
	if err == nil {
		return nil
	}
	var out []error
	var walk func(error)
	walk = func(e error) {
		multi, ok := e.(interface{ Unwrap() []error })
		if !ok {
			out = append(out, e)
			return
		}
		inner := multi.Unwrap()
		n := len(out)
		for _, ie := range inner {
			if ie != nil {
				walk(ie)
			}
		}
		if len(out) == n {
			out = append(out, e)
		}
	}
	walk(err)
	return out
}

// TypeName reports the dynamic type of err the way it is shown to users.
func TypeName(err error) string {
	if err == nil {
		return "<nil>"
	}
	if pe, ok := err.(*PanicError); ok {
		if inner, ok := pe.Value.(error); ok {
			return "panic " + TypeName(inner)
		}
		return "panic " + strings.TrimPrefix(fmt.Sprintf("%T", pe.Value), "*")
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}

// Describe renders a single cause as "<type>: <message>".
func Describe(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if pe, ok := err.(*PanicError); ok {
		msg = fmt.Sprint(pe.Value)
	}
	return TypeName(err) + ": " + msg
}

// Enumerate renders causes as a numbered list, one per line.
func Enumerate(causes []error) string {
	var b strings.Builder
	for i, c := range causes {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(Describe(c))
	}
	return b.String()
}

// PanicError carries a recovered panic value as an error.
type PanicError struct {
	Value any
	Stack []byte
}

// NewPanicError captures the current stack. Call it from the deferred
// function that recovered v.
func NewPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// IsPanic reports whether err carries a recovered panic.
func IsPanic(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}
