package unwind

import (
	"github.com/google/uuid"
)

// SagaName represents a human-readable name for a particular saga.
type SagaName string

// String returns the string representation of the SagaName.
func (s SagaName) String() string {
	return string(s)
}

// SagaID represents a unique identifier for one saga run.
type SagaID struct {
	UUID uuid.UUID
}

// NewSagaID generates a fresh SagaID.
func NewSagaID() SagaID {
	return SagaID{UUID: uuid.New()}
}

// String returns the string representation of the SagaID.
func (s SagaID) String() string {
	return s.UUID.String()
}

// Saga is an immutable, ordered saga definition produced by a Builder.
//
// Order is significant: it defines both the forward execution order and the
// reverse order used for compensation. A Saga holds no execution state and
// has no side effects of its own, so the same definition can be run any
// number of times against fresh contexts.
type Saga struct {
	name  SagaName
	steps []*Step
}

// Name returns the saga's name.
func (s *Saga) Name() SagaName {
	return s.name
}

// Len returns the number of steps in the definition. Zero is valid: an
// empty saga trivially succeeds.
func (s *Saga) Len() int {
	return len(s.steps)
}

// Steps returns the steps in forward execution order. The slice is a copy;
// the definition itself cannot be mutated.
func (s *Saga) Steps() []*Step {
	out := make([]*Step, len(s.steps))
	copy(out, s.steps)
	return out
}

// StepNames returns the step names in forward execution order.
func (s *Saga) StepNames() []StepName {
	names := make([]StepName, len(s.steps))
	for i, step := range s.steps {
		names[i] = step.name
	}
	return names
}
