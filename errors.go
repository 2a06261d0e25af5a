package unwind

import (
	"fmt"
	"runtime"
	"strings"
)

// ValidationError indicates a malformed saga definition. It is surfaced from
// Builder.Build (and StepRegistry.Register) and never from Run.
type ValidationError struct {
	Step   StepName
	Reason string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("invalid saga definition: %s", e.Reason)
	}
	return fmt.Sprintf("invalid saga definition: step %q: %s", e.Step, e.Reason)
}

func newValidationError(step StepName, reason string) *ValidationError {
	return &ValidationError{Step: step, Reason: reason}
}

// ExecutionError records the failure of a forward action. It carries the
// originating step name, the underlying cause, and the goroutine stack
// captured at the point the orchestrator observed the failure.
type ExecutionError struct {
	Step  StepName
	Err   error
	Stack string
}

// Error implements the error interface for ExecutionError.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("step %q: action failed: %v", e.Step, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// CompensationError records the failure of a compensation during rollback.
type CompensationError struct {
	Step  StepName
	Err   error
	Stack string
}

// Error implements the error interface for CompensationError.
func (e *CompensationError) Error() string {
	return fmt.Sprintf("step %q: compensation failed: %v", e.Step, e.Err)
}

// Unwrap returns the underlying cause.
func (e *CompensationError) Unwrap() error {
	return e.Err
}

// SagaError aggregates everything that went wrong in one failed run: the
// triggering action failure plus every compensation failure, in the order
// the compensations were attempted. It is what Result.Err returns.
type SagaError struct {
	Triggering         *ExecutionError
	CompensationErrors []*CompensationError
}

// Error implements the error interface for SagaError. The message preserves
// full diagnostic context for post-mortem: which step failed and why, with
// its captured stack, followed by every rollback failure.
func (e *SagaError) Error() string {
	var b strings.Builder
	b.WriteString("saga execution failed, compensation attempted")
	if e.Triggering != nil {
		fmt.Fprintf(&b, "\n\ntransaction failed at step %q: %v", e.Triggering.Step, e.Triggering.Err)
		if e.Triggering.Stack != "" {
			b.WriteString("\n")
			b.WriteString(indentTrace(e.Triggering.Stack, 2))
		}
	}
	if len(e.CompensationErrors) > 0 {
		b.WriteString("\n\ncompensations encountered errors:")
		for _, ce := range e.CompensationErrors {
			fmt.Fprintf(&b, "\n  - step %q: %v", ce.Step, ce.Err)
			if ce.Stack != "" {
				b.WriteString("\n")
				b.WriteString(indentTrace(ce.Stack, 6))
			}
		}
	}
	return b.String()
}

// Unwrap returns the triggering execution error.
func (e *SagaError) Unwrap() error {
	if e.Triggering == nil {
		return nil
	}
	return e.Triggering
}

// indentTrace prefixes every line of a captured stack with the given
// indentation so aggregated messages stay readable.
func indentTrace(trace string, indent int) string {
	pad := strings.Repeat(" ", indent)
	lines := strings.Split(strings.TrimRight(trace, "\n"), "\n")
	for i, line := range lines {
		lines[i] = pad + line
	}
	return strings.Join(lines, "\n")
}

// captureStack records the calling goroutine's stack, skipping the given
// number of frames above captureStack itself.
func captureStack(skip int) string {
	pc := make([]uintptr, 32)
	n := runtime.Callers(skip+2, pc)
	if n == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(pc[:n])
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return b.String()
}
