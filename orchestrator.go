package unwind

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

// SagaState represents the state of one run as it moves through the
// orchestrator's state machine:
//
//	Pending → Running → Succeeded
//	                  ↘ Compensating → Compensated
//	                                 ↘ CompensationFailed
//
// Succeeded, Compensated, and CompensationFailed are terminal.
type SagaState int

const (
	StatePending SagaState = iota
	StateRunning
	StateSucceeded
	StateCompensating
	StateCompensated
	StateCompensationFailed
)

// String returns the string representation of the SagaState.
func (s SagaState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateCompensating:
		return "compensating"
	case StateCompensated:
		return "compensated"
	case StateCompensationFailed:
		return "compensation_failed"
	default:
		return "unknown"
	}
}

// ExecutionRecord tracks one forward action invocation.
type ExecutionRecord struct {
	Step      StepName
	Output    any
	StartTime time.Time
	EndTime   time.Time
	Status    StepStatus
	Error     error
}

// Orchestrator drives saga runs. It holds configuration only, never per-run
// state, so a single Orchestrator can serve concurrent Run calls as long as
// each call gets its own Context.
type Orchestrator struct {
	logger  zerolog.Logger
	metrics *Metrics
	store   RunStore
}

// NewOrchestrator creates an Orchestrator. By default it logs nothing,
// records no metrics, and archives nothing; see the With* options.
func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the saga against the given context and returns its terminal
// Result. A nil Context is replaced with an empty one.
//
// Steps run strictly one at a time in definition order; step N's action
// never starts before step N-1's has resolved. On the first action failure
// the forward phase stops and every previously completed step is
// compensated last-completed-first, each compensation attempted
// independently so that one rollback failure cannot strand the resources
// behind the others. Run never panics and never propagates an error out of
// band: action and compensation panics are recovered into step errors, and
// every failure is reported through the Result.
//
// Re-running the same definition against a fresh Context is always safe.
// Re-running against the same Context after a failure is not supported: its
// values may reflect partial mutation.
func (o *Orchestrator) Run(ctx context.Context, saga *Saga, sg *Context) *Result {
	if sg == nil {
		sg = NewContext()
	}

	e := &execution{
		orch:      o,
		saga:      saga,
		sg:        sg,
		id:        NewSagaID(),
		state:     StatePending,
		startedAt: time.Now(),
	}
	e.log = NewRunLog(e.id)
	e.logger = o.logger.With().
		Stringer("saga_id", e.id).
		Str("saga", string(saga.Name())).
		Logger()

	return e.run(ctx)
}

// execution is the per-run state: the stack of completed steps, the trace,
// and the collected errors. It is created at run start and discarded once
// the Result is built.
type execution struct {
	orch   *Orchestrator
	saga   *Saga
	sg     *Context
	id     SagaID
	log    *RunLog
	logger zerolog.Logger

	state     SagaState
	completed []*Step
	records   []ExecutionRecord
	trigger   *ExecutionError
	compErrs  []*CompensationError
	startedAt time.Time
}

func (e *execution) run(ctx context.Context) *Result {
	e.transition(StateRunning)

	for _, step := range e.saga.steps {
		if !e.forward(ctx, step) {
			break
		}
	}

	if e.trigger == nil {
		e.transition(StateSucceeded)
		return e.finish(StatusSucceeded, RollbackNone)
	}

	e.transition(StateCompensating)
	e.compensateAll(ctx)

	// Either way the run has failed; the rollback outcome is the sub-status.
	if len(e.compErrs) == 0 {
		e.transition(StateCompensated)
		return e.finish(StatusFailed, RollbackCompleted)
	}
	e.transition(StateCompensationFailed)
	return e.finish(StatusFailed, RollbackFailed)
}

// forward runs one step's action. It returns false when the action failed
// and the run must unwind.
func (e *execution) forward(ctx context.Context, step *Step) bool {
	// Record errors are impossible here: the orchestrator only ever emits
	// legal transitions for each step.
	_ = e.log.Record(step.name, EventStarted)
	e.logger.Debug().Stringer("step", step.name).Msg("executing action")

	startTime := time.Now()
	output, err := e.invokeAction(ctx, step)
	endTime := time.Now()

	e.orch.metrics.observeStep(e.saga.Name(), step.name, endTime.Sub(startTime))

	if err != nil {
		_ = e.log.Record(step.name, EventFailed)
		e.records = append(e.records, ExecutionRecord{
			Step:      step.name,
			StartTime: startTime,
			EndTime:   endTime,
			Status:    StepFailed,
			Error:     err,
		})
		e.trigger = &ExecutionError{
			Step:  step.name,
			Err:   err,
			Stack: stackFor(err),
		}
		e.logger.Error().Err(err).Stringer("step", step.name).Msg("action failed, unwinding")
		return false
	}

	_ = e.log.Record(step.name, EventSucceeded)
	if output != nil {
		// Publish the output for later steps and for compensations.
		e.sg.Set(string(step.name), output)
	}
	e.records = append(e.records, ExecutionRecord{
		Step:      step.name,
		Output:    output,
		StartTime: startTime,
		EndTime:   endTime,
		Status:    StepSucceeded,
	})
	e.completed = append(e.completed, step)
	return true
}

// compensateAll drains the completed-step stack in reverse, attempting every
// compensation regardless of earlier compensation failures.
func (e *execution) compensateAll(ctx context.Context) {
	for i := len(e.completed) - 1; i >= 0; i-- {
		step := e.completed[i]

		_ = e.log.Record(step.name, EventUndoStarted)
		e.logger.Debug().Stringer("step", step.name).Msg("compensating")

		err := e.invokeCompensation(ctx, step)
		if err != nil {
			_ = e.log.Record(step.name, EventUndoFailed)
			e.compErrs = append(e.compErrs, &CompensationError{
				Step:  step.name,
				Err:   err,
				Stack: stackFor(err),
			})
			e.orch.metrics.observeCompensation(e.saga.Name(), false)
			e.logger.Error().Err(err).Stringer("step", step.name).Msg("compensation failed, continuing rollback")
			continue
		}

		_ = e.log.Record(step.name, EventUndoFinished)
		e.orch.metrics.observeCompensation(e.saga.Name(), true)
	}
}

// invokeAction calls the step's action, converting a panic into an error
// that carries the panicking goroutine's stack.
func (e *execution) invokeAction(ctx context.Context, step *Step) (output any, err error) {
	defer func() {
		if r := recover(); r != nil {
			output = nil
			err = &panicError{value: r, stack: string(debug.Stack())}
		}
	}()
	return step.action(ctx, e.sg)
}

// invokeCompensation calls the step's compensation with the same panic
// conversion as invokeAction.
func (e *execution) invokeCompensation(ctx context.Context, step *Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: string(debug.Stack())}
		}
	}()
	return step.compensate(ctx, e.sg)
}

func (e *execution) transition(to SagaState) {
	e.logger.Debug().
		Stringer("from", e.state).
		Stringer("to", to).
		Msg("state transition")
	e.state = to
}

// finish builds the terminal Result, records metrics, and archives the run
// if a store is configured. Archive failures are logged, never fatal.
func (e *execution) finish(status Status, rollback RollbackStatus) *Result {
	result := &Result{
		SagaID:             e.id,
		SagaName:           e.saga.Name(),
		Status:             status,
		Rollback:           rollback,
		Context:            e.sg,
		TriggeringError:    e.trigger,
		CompensationErrors: e.compErrs,
		Records:            e.records,
		Events:             e.log.Events(),
		StartedAt:          e.startedAt,
		FinishedAt:         time.Now(),
	}

	e.orch.metrics.observeRun(e.saga.Name(), status, rollback, result.FinishedAt.Sub(result.StartedAt))

	switch status {
	case StatusSucceeded:
		e.logger.Info().Int("steps", len(e.completed)).Msg("saga succeeded")
	default:
		e.logger.Warn().
			Stringer("rollback", rollback).
			Int("compensation_errors", len(e.compErrs)).
			Msg("saga failed")
	}

	if e.orch.store != nil {
		// Archiving is post-mortem diagnostics; it must not change the
		// run's outcome.
		if err := e.orch.store.Save(context.Background(), newRunRecord(result)); err != nil {
			e.logger.Warn().Err(err).Msg("failed to archive run record")
		}
	}

	return result
}

// panicError wraps a recovered panic value together with the stack captured
// inside the panicking goroutine.
type panicError struct {
	value any
	stack string
}

// Error implements the error interface for panicError.
func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

// stackFor returns the most useful stack for a failure: the panic site for
// recovered panics, otherwise the orchestrator's observation point.
func stackFor(err error) string {
	if pe, ok := err.(*panicError); ok {
		return pe.stack
	}
	return captureStack(1)
}
