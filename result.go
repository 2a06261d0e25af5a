package unwind

import (
	"fmt"
	"time"
)

// Status is the terminal outcome of a run. The public contract is binary:
// a run either succeeded or failed with diagnostics. How the rollback itself
// went is exposed separately as the Result's Rollback sub-status.
type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
)

// String returns the string representation of the Status.
func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Unknown Status: %d", s)
	}
}

// RollbackStatus describes how the compensation phase of a failed run went.
type RollbackStatus int

const (
	// RollbackNone means no rollback happened; the run succeeded.
	RollbackNone RollbackStatus = iota
	// RollbackCompleted means every attempted compensation succeeded.
	RollbackCompleted
	// RollbackFailed means at least one compensation failed.
	RollbackFailed
)

// String returns the string representation of the RollbackStatus.
func (s RollbackStatus) String() string {
	switch s {
	case RollbackNone:
		return "none"
	case RollbackCompleted:
		return "completed"
	case RollbackFailed:
		return "failed"
	default:
		return fmt.Sprintf("Unknown RollbackStatus: %d", s)
	}
}

// Result is the terminal, immutable outcome of one Orchestrator.Run call.
type Result struct {
	// SagaID identifies this run.
	SagaID SagaID
	// SagaName is the name of the definition that was run.
	SagaName SagaName
	// Status is the binary outcome: succeeded, or failed with diagnostics.
	Status Status
	// Rollback reports how compensation went for a failed run.
	Rollback RollbackStatus
	// Context is the execution context as it stood when the run reached its
	// terminal state. On failure its values may reflect partial mutation.
	Context *Context
	// TriggeringError is the forward-action failure that started the
	// rollback, nil on success.
	TriggeringError *ExecutionError
	// CompensationErrors holds every compensation failure in invocation
	// (descending step) order. None are ever dropped.
	CompensationErrors []*CompensationError
	// Records holds one entry per forward action invocation, in order.
	Records []ExecutionRecord
	// Events is the full run event trace.
	Events []*RunEvent

	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded reports whether the run reached StatusSucceeded.
func (r *Result) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// Err returns nil for a successful run, or a *SagaError aggregating the
// triggering error and every compensation error for a failed one. It exists
// so hosts that prefer error-shaped control flow can branch on the Result
// without losing any diagnostics.
func (r *Result) Err() error {
	if r.Status == StatusSucceeded {
		return nil
	}
	return &SagaError{
		Triggering:         r.TriggeringError,
		CompensationErrors: r.CompensationErrors,
	}
}
