package unwind

import (
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
)

// RegistryError represents an error returned from StepRegistry.Get().
type RegistryError struct {
	error
}

// NotFoundError indicates that a step with the given name was not found.
func NotFoundError() error {
	return &RegistryError{fmt.Errorf("step not found")}
}

// StepRegistry is a registry of reusable steps shared across sagas.
//
// Steps are identified by their StepName. Saga construction is often dynamic
// and based on user input, so hosts register their do/undo pairs once and
// assemble definitions by name (see Builder.AddRegistered) instead of
// re-wiring the same closures for every saga.
type StepRegistry struct {
	steps *xsync.MapOf[StepName, *Step]
}

// NewStepRegistry creates a new StepRegistry.
func NewStepRegistry() *StepRegistry {
	return &StepRegistry{
		steps: xsync.NewMapOf[StepName, *Step](),
	}
}

// Register adds a step to the registry. The step must have a non-empty name
// and an action; registering the same name twice is an error.
func (r *StepRegistry) Register(step *Step) error {
	if step == nil {
		return newValidationError("", "step must not be nil")
	}
	if step.name == "" {
		return newValidationError("", "step name must not be empty")
	}
	if step.action == nil {
		return newValidationError(step.name, "action must not be nil")
	}
	if _, ok := r.steps.Load(step.name); ok {
		return fmt.Errorf("step with name '%s' already registered", step.name)
	}
	r.steps.Store(step.name, step)
	return nil
}

// Get retrieves a step from the registry by its name.
func (r *StepRegistry) Get(name StepName) (*Step, error) {
	step, ok := r.steps.Load(name)
	if !ok {
		return nil, NotFoundError()
	}
	return step, nil
}
