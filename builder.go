package unwind

import (
	"errors"
	"fmt"

	"github.com/fortressi/unwind/set"
)

// Builder assembles a Saga incrementally and fluently.
//
// AddStep and AddRegistered return the Builder so calls can be chained;
// validation problems (empty or duplicate names, missing actions) are
// accumulated and surfaced from Build as *ValidationError values. Build
// snapshots the steps added so far: mutating the builder afterwards never
// affects a previously built Saga.
type Builder struct {
	sagaName SagaName
	chain    *chain

	stepNames *set.Set[StepName]
	registry  *StepRegistry
	errs      []error
}

// NewBuilder creates a new Builder for a saga with the given name.
func NewBuilder(sagaName SagaName) *Builder {
	return &Builder{
		sagaName:  sagaName,
		chain:     newChain(),
		stepNames: &set.Set[StepName]{},
	}
}

// WithRegistry attaches a StepRegistry to the builder, enabling
// AddRegistered. Steps appended via AddStep are also registered there (if
// not already present) so they can be reused by other builders.
func (b *Builder) WithRegistry(registry *StepRegistry) *Builder {
	b.registry = registry
	return b
}

// AddStep appends a step to the saga. The compensation may be nil, in which
// case it defaults to a no-op. Validation failures are recorded and returned
// from Build.
func (b *Builder) AddStep(name StepName, action ActionFunc, compensation CompensateFunc) *Builder {
	if name == "" {
		b.errs = append(b.errs, newValidationError("", "step name must not be empty"))
		return b
	}
	if action == nil {
		b.errs = append(b.errs, newValidationError(name, "action must not be nil"))
		return b
	}
	return b.appendStep(NewStep(name, action, compensation))
}

// AddRegistered appends a step previously registered in the builder's
// StepRegistry by name. Requires WithRegistry.
func (b *Builder) AddRegistered(name StepName) *Builder {
	if b.registry == nil {
		b.errs = append(b.errs, newValidationError(name, "builder has no registry"))
		return b
	}
	step, err := b.registry.Get(name)
	if err != nil {
		b.errs = append(b.errs, newValidationError(name, "not found in registry"))
		return b
	}
	return b.appendStep(step)
}

func (b *Builder) appendStep(step *Step) *Builder {
	if b.stepNames.Contains(step.name) {
		b.errs = append(b.errs, newValidationError(step.name, "duplicate step name"))
		return b
	}
	b.stepNames.Insert(step.name)

	if b.registry != nil {
		// Auto-register so other builders can reference the step by name.
		if _, err := b.registry.Get(step.name); err != nil {
			if regErr := b.registry.Register(step); regErr != nil {
				b.errs = append(b.errs, fmt.Errorf("failed to register step %s: %w", step.name, regErr))
				return b
			}
		}
	}

	b.chain.append(step)
	return b
}

// Build finalizes the definition and returns an immutable Saga snapshot of
// the steps added so far. An empty builder yields a valid empty saga. If any
// AddStep or AddRegistered call was invalid, Build returns the accumulated
// errors instead.
func (b *Builder) Build() (*Saga, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	steps, err := b.chain.executionOrder()
	if err != nil {
		return nil, err
	}

	return &Saga{
		name:  b.sagaName,
		steps: steps,
	}, nil
}
