package unwind

import (
	"context"
	"fmt"
)

// StepName represents a unique name for a saga Step.
type StepName string

// String returns the string representation of the StepName.
func (n StepName) String() string {
	return string(n)
}

// ActionFunc is the forward half of a step. It receives the shared execution
// Context and may return an output; a non-nil output is published into the
// Context under the step's name so that later steps and compensations can
// look it up.
type ActionFunc func(ctx context.Context, sg *Context) (any, error)

// CompensateFunc is the undo half of a step. It semantically reverses the
// effect of the paired action.
type CompensateFunc func(ctx context.Context, sg *Context) error

// NoOpCompensation is a CompensateFunc that does nothing. Steps whose action
// has no external effect to reverse can use it explicitly; it is also what a
// nil compensation defaults to.
func NoOpCompensation(_ context.Context, _ *Context) error {
	return nil
}

// Step pairs a forward action with its compensation. Steps are immutable
// once added to a Saga.
type Step struct {
	name       StepName
	action     ActionFunc
	compensate CompensateFunc
}

// NewStep constructs a Step. A nil compensation defaults to
// NoOpCompensation; validation of the name and action happens when the step
// is appended to a Builder or registered in a StepRegistry.
func NewStep(name StepName, action ActionFunc, compensation CompensateFunc) *Step {
	if compensation == nil {
		compensation = NoOpCompensation
	}
	return &Step{
		name:       name,
		action:     action,
		compensate: compensation,
	}
}

// Name returns the step's name.
func (s *Step) Name() StepName {
	return s.name
}

// String implements the fmt.Stringer interface for Step.
func (s *Step) String() string {
	return fmt.Sprintf("Step(%s)", s.name)
}
