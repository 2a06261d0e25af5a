package unwind

import (
	"github.com/rs/zerolog"
)

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(o *Orchestrator)

// WithLogger sets the zerolog.Logger the orchestrator emits structured
// events to. The default is zerolog.Nop().
func WithLogger(logger zerolog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithMetrics sets the Metrics collector run and step observations are
// recorded to.
func WithMetrics(metrics *Metrics) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = metrics
	}
}

// WithStore sets the RunStore terminal run records are archived to.
func WithStore(store RunStore) OrchestratorOption {
	return func(o *Orchestrator) {
		o.store = store
	}
}
