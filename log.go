package unwind

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// RunEvent represents an entry in the run log.
type RunEvent struct {
	SagaID SagaID
	Step   StepName
	Type   RunEventType
	At     time.Time
}

// String implements the fmt.Stringer interface for RunEvent.
func (e *RunEvent) String() string {
	return fmt.Sprintf("%s %s", e.Step, e.Type)
}

// RunEventType defines the types of events that can occur for a saga step.
type RunEventType int

const (
	EventStarted RunEventType = iota
	EventSucceeded
	EventFailed
	EventUndoStarted
	EventUndoFinished
	EventUndoFailed
)

// String returns the string representation of the RunEventType.
func (t RunEventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventSucceeded:
		return "succeeded"
	case EventFailed:
		return "failed"
	case EventUndoStarted:
		return "undo_started"
	case EventUndoFinished:
		return "undo_finished"
	case EventUndoFailed:
		return "undo_failed"
	default:
		return fmt.Sprintf("Unknown RunEventType: %d", t)
	}
}

// StepStatus represents the recorded lifecycle status for a saga step.
type StepStatus int

const (
	StepNeverStarted StepStatus = iota
	StepStarted
	StepSucceeded
	StepFailed
	StepUndoStarted
	StepUndoFinished
	StepUndoFailed
)

// nextStatus returns the new status for a step after recording the given event.
func (s StepStatus) nextStatus(eventType RunEventType) (StepStatus, error) {
	switch s {
	case StepNeverStarted:
		if eventType == EventStarted {
			return StepStarted, nil
		}
	case StepStarted:
		switch eventType {
		case EventSucceeded:
			return StepSucceeded, nil
		case EventFailed:
			return StepFailed, nil
		}
	case StepSucceeded:
		if eventType == EventUndoStarted {
			return StepUndoStarted, nil
		}
	case StepUndoStarted:
		switch eventType {
		case EventUndoFinished:
			return StepUndoFinished, nil
		case EventUndoFailed:
			return StepUndoFailed, nil
		}
	}

	return StepNeverStarted, fmt.Errorf(
		"illegal event type %s for current step status %v",
		eventType, s,
	)
}

// String returns the string representation of the StepStatus.
func (s StepStatus) String() string {
	switch s {
	case StepNeverStarted:
		return "NeverStarted"
	case StepStarted:
		return "Started"
	case StepSucceeded:
		return "Succeeded"
	case StepFailed:
		return "Failed"
	case StepUndoStarted:
		return "UndoStarted"
	case StepUndoFinished:
		return "UndoFinished"
	case StepUndoFailed:
		return "UndoFailed"
	default:
		return fmt.Sprintf("Unknown StepStatus: %d", s)
	}
}

// MarshalJSON implements the json.Marshaler interface for StepStatus.
func (s StepStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for StepStatus.
func (s *StepStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	switch str {
	case "NeverStarted":
		*s = StepNeverStarted
	case "Started":
		*s = StepStarted
	case "Succeeded":
		*s = StepSucceeded
	case "Failed":
		*s = StepFailed
	case "UndoStarted":
		*s = StepUndoStarted
	case "UndoFinished":
		*s = StepUndoFinished
	case "UndoFailed":
		*s = StepUndoFailed
	default:
		return fmt.Errorf("invalid StepStatus: %s", str)
	}

	return nil
}

// RunLog is the ordered event trace for one saga run. Every status change a
// step goes through is recorded as a RunEvent, and each transition is
// validated against the step lifecycle so the log can never describe an
// impossible history.
type RunLog struct {
	mu         sync.Mutex
	sagaID     SagaID
	unwinding  bool
	events     []*RunEvent
	stepStatus map[StepName]StepStatus
}

// NewRunLog creates a new, empty RunLog for the given run.
func NewRunLog(sagaID SagaID) *RunLog {
	return &RunLog{
		sagaID:     sagaID,
		events:     make([]*RunEvent, 0),
		stepStatus: make(map[StepName]StepStatus),
	}
}

// Record adds an event to the RunLog, validating the step's status
// transition.
func (l *RunLog) Record(step StepName, eventType RunEventType) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	currentStatus, exists := l.stepStatus[step]
	if !exists {
		currentStatus = StepNeverStarted
	}

	nextStatus, err := currentStatus.nextStatus(eventType)
	if err != nil {
		return fmt.Errorf("step %q: %w", step, err)
	}

	switch nextStatus {
	case StepFailed, StepUndoStarted, StepUndoFinished, StepUndoFailed:
		l.unwinding = true
	}

	l.stepStatus[step] = nextStatus
	l.events = append(l.events, &RunEvent{
		SagaID: l.sagaID,
		Step:   step,
		Type:   eventType,
		At:     time.Now(),
	})
	return nil
}

// Unwinding returns true once the run has entered its compensation phase.
func (l *RunLog) Unwinding() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.unwinding
}

// StatusFor returns the recorded status for a step.
func (l *RunLog) StatusFor(step StepName) StepStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	status, exists := l.stepStatus[step]
	if !exists {
		return StepNeverStarted
	}
	return status
}

// Events returns a copy of the events recorded so far, in order.
func (l *RunLog) Events() []*RunEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	events := make([]*RunEvent, len(l.events))
	copy(events, l.events)
	return events
}

// RunLogPretty is a helper for pretty-printing a RunLog.
type RunLogPretty struct {
	Log *RunLog
}

// String implements the fmt.Stringer interface for RunLogPretty.
func (p *RunLogPretty) String() string {
	p.Log.mu.Lock()
	defer p.Log.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("RUN LOG:\n")
	sb.WriteString(fmt.Sprintf("saga id:   %s\n", p.Log.sagaID))
	direction := "forward"
	if p.Log.unwinding {
		direction = "unwinding"
	}
	sb.WriteString(fmt.Sprintf("direction: %s\n", direction))
	sb.WriteString(fmt.Sprintf("events (%d total):\n", len(p.Log.events)))
	sb.WriteString("\n")
	for i, event := range p.Log.events {
		sb.WriteString(fmt.Sprintf("%03d %s\n", i+1, event.String()))
	}
	return sb.String()
}
