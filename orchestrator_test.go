package unwind

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test saga: Order Processing
// Flow: create_order -> validate_payment -> update_inventory -> ship_order

func okStep(name StepName, calls *[]string) (StepName, ActionFunc, CompensateFunc) {
	return name,
		func(ctx context.Context, sg *Context) (any, error) {
			*calls = append(*calls, "do:"+string(name))
			return string(name) + "-result", nil
		},
		func(ctx context.Context, sg *Context) error {
			*calls = append(*calls, "undo:"+string(name))
			return nil
		}
}

func failingStep(name StepName, calls *[]string) (StepName, ActionFunc, CompensateFunc) {
	return name,
		func(ctx context.Context, sg *Context) (any, error) {
			*calls = append(*calls, "do:"+string(name))
			return nil, fmt.Errorf("%s exploded", name)
		},
		func(ctx context.Context, sg *Context) error {
			*calls = append(*calls, "undo:"+string(name))
			return nil
		}
}

func TestRunAllStepsSucceed(t *testing.T) {
	var calls []string

	saga, err := NewBuilder("order-processing").
		AddStep("create_order", func(ctx context.Context, sg *Context) (any, error) {
			calls = append(calls, "do:create_order")
			return map[string]string{"order_id": "order-123"}, nil
		}, func(ctx context.Context, sg *Context) error {
			calls = append(calls, "undo:create_order")
			return nil
		}).
		AddStep("validate_payment", func(ctx context.Context, sg *Context) (any, error) {
			calls = append(calls, "do:validate_payment")
			order, ok := LookupTyped[map[string]string](sg, "create_order")
			require.True(t, ok, "payment step should see the order output")
			return "payment-for-" + order["order_id"], nil
		}, func(ctx context.Context, sg *Context) error {
			calls = append(calls, "undo:validate_payment")
			return nil
		}).
		AddStep("ship_order", func(ctx context.Context, sg *Context) (any, error) {
			calls = append(calls, "do:ship_order")
			sg.Set("shipped", true)
			return nil, nil
		}, nil).
		Build()
	require.NoError(t, err)

	result := NewOrchestrator().Run(context.Background(), saga, NewContext())

	assert.Equal(t, StatusSucceeded, result.Status)
	assert.Equal(t, RollbackNone, result.Rollback)
	assert.True(t, result.Succeeded())
	assert.NoError(t, result.Err())
	assert.Nil(t, result.TriggeringError)
	assert.Empty(t, result.CompensationErrors)

	// Forward order, no compensations.
	assert.Equal(t, []string{"do:create_order", "do:validate_payment", "do:ship_order"}, calls)

	// Cumulative effect of all actions is visible in the final context.
	payment, ok := LookupTyped[string](result.Context, "validate_payment")
	require.True(t, ok)
	assert.Equal(t, "payment-for-order-123", payment)
	shipped, ok := LookupTyped[bool](result.Context, "shipped")
	require.True(t, ok)
	assert.True(t, shipped)

	// One record per forward action, all succeeded.
	require.Len(t, result.Records, 3)
	for _, record := range result.Records {
		assert.Equal(t, StepSucceeded, record.Status)
		assert.NoError(t, record.Error)
		assert.False(t, record.EndTime.Before(record.StartTime))
	}
}

func TestRunFailureCompensatesInReverseOrder(t *testing.T) {
	var calls []string

	saga, err := NewBuilder("abc").
		AddStep(okStep("a", &calls)).
		AddStep(okStep("b", &calls)).
		AddStep(failingStep("c", &calls)).
		Build()
	require.NoError(t, err)

	result := NewOrchestrator().Run(context.Background(), saga, NewContext())

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, RollbackCompleted, result.Rollback)
	require.NotNil(t, result.TriggeringError)
	assert.Equal(t, StepName("c"), result.TriggeringError.Step)
	assert.EqualError(t, result.TriggeringError.Err, "c exploded")
	assert.Empty(t, result.CompensationErrors)

	// Forward a, b, c; then compensation strictly b then a. Nothing is
	// compensated for the failed step itself.
	assert.Equal(t, []string{"do:a", "do:b", "do:c", "undo:b", "undo:a"}, calls)
}

func TestRunFirstStepFailure(t *testing.T) {
	var calls []string

	saga, err := NewBuilder("first-fails").
		AddStep(failingStep("a", &calls)).
		AddStep(okStep("b", &calls)).
		Build()
	require.NoError(t, err)

	result := NewOrchestrator().Run(context.Background(), saga, NewContext())

	// Compensation over an empty execution record is a no-op and still
	// counts as a completed rollback.
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, RollbackCompleted, result.Rollback)
	assert.Empty(t, result.CompensationErrors)
	assert.Equal(t, []string{"do:a"}, calls)
}

func TestRunCompensationFailureContinuesRollback(t *testing.T) {
	var calls []string

	saga, err := NewBuilder("partial-rollback").
		AddStep(okStep("a", &calls)).
		AddStep("b", func(ctx context.Context, sg *Context) (any, error) {
			calls = append(calls, "do:b")
			return nil, nil
		}, func(ctx context.Context, sg *Context) error {
			calls = append(calls, "undo:b")
			return fmt.Errorf("undo b exploded")
		}).
		AddStep(failingStep("c", &calls)).
		Build()
	require.NoError(t, err)

	result := NewOrchestrator().Run(context.Background(), saga, NewContext())

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, RollbackFailed, result.Rollback)

	// b's compensation failed but a's still ran.
	assert.Equal(t, []string{"do:a", "do:b", "do:c", "undo:b", "undo:a"}, calls)

	require.Len(t, result.CompensationErrors, 1)
	assert.Equal(t, StepName("b"), result.CompensationErrors[0].Step)
	assert.EqualError(t, result.CompensationErrors[0].Err, "undo b exploded")
}

func TestRunSingleCompensationFailure(t *testing.T) {
	// Scenario: [a(ok), b(fails)] where a's compensation also fails.
	var calls []string

	saga, err := NewBuilder("a-undo-fails").
		AddStep("a", func(ctx context.Context, sg *Context) (any, error) {
			calls = append(calls, "do:a")
			return nil, nil
		}, func(ctx context.Context, sg *Context) error {
			calls = append(calls, "undo:a")
			return fmt.Errorf("undo a exploded")
		}).
		AddStep(failingStep("b", &calls)).
		Build()
	require.NoError(t, err)

	result := NewOrchestrator().Run(context.Background(), saga, NewContext())

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, RollbackFailed, result.Rollback)
	require.NotNil(t, result.TriggeringError)
	assert.Equal(t, StepName("b"), result.TriggeringError.Step)
	require.Len(t, result.CompensationErrors, 1)
	assert.Equal(t, StepName("a"), result.CompensationErrors[0].Step)
	assert.Equal(t, []string{"do:a", "do:b", "undo:a"}, calls)
}

func TestRunCompensationErrorsPreserveInvocationOrder(t *testing.T) {
	var calls []string
	undoFails := func(name StepName) (StepName, ActionFunc, CompensateFunc) {
		return name,
			func(ctx context.Context, sg *Context) (any, error) {
				calls = append(calls, "do:"+string(name))
				return nil, nil
			},
			func(ctx context.Context, sg *Context) error {
				calls = append(calls, "undo:"+string(name))
				return fmt.Errorf("undo %s exploded", name)
			}
	}

	saga, err := NewBuilder("multi-rollback-failure").
		AddStep(undoFails("a")).
		AddStep(okStep("b", &calls)).
		AddStep(undoFails("c")).
		AddStep(failingStep("d", &calls)).
		Build()
	require.NoError(t, err)

	result := NewOrchestrator().Run(context.Background(), saga, NewContext())

	// All three compensations were attempted, LIFO.
	assert.Equal(t, []string{"do:a", "do:b", "do:c", "do:d", "undo:c", "undo:b", "undo:a"}, calls)

	// Errors are kept in invocation order: c first, then a.
	require.Len(t, result.CompensationErrors, 2)
	assert.Equal(t, StepName("c"), result.CompensationErrors[0].Step)
	assert.Equal(t, StepName("a"), result.CompensationErrors[1].Step)
}

func TestRunEmptySagaSucceeds(t *testing.T) {
	saga, err := NewBuilder("empty").Build()
	require.NoError(t, err)
	require.Equal(t, 0, saga.Len())

	sg := NewContext()
	sg.Set("untouched", 42)

	result := NewOrchestrator().Run(context.Background(), saga, sg)

	assert.Equal(t, StatusSucceeded, result.Status)
	assert.Equal(t, RollbackNone, result.Rollback)
	assert.Empty(t, result.Records)
	assert.Empty(t, result.Events)
	assert.Equal(t, map[string]any{"untouched": 42}, result.Context.Snapshot())
}

func TestRunNilContext(t *testing.T) {
	saga, err := NewBuilder("nil-context").
		AddStep("a", func(ctx context.Context, sg *Context) (any, error) {
			return "ok", nil
		}, nil).
		Build()
	require.NoError(t, err)

	result := NewOrchestrator().Run(context.Background(), saga, nil)

	require.NotNil(t, result.Context)
	out, ok := LookupTyped[string](result.Context, "a")
	require.True(t, ok)
	assert.Equal(t, "ok", out)
}

func TestRunRecoversActionPanic(t *testing.T) {
	var calls []string

	saga, err := NewBuilder("panicky").
		AddStep(okStep("a", &calls)).
		AddStep("b", func(ctx context.Context, sg *Context) (any, error) {
			panic("boom")
		}, nil).
		Build()
	require.NoError(t, err)

	var result *Result
	require.NotPanics(t, func() {
		result = NewOrchestrator().Run(context.Background(), saga, NewContext())
	})

	assert.Equal(t, StatusFailed, result.Status)
	require.NotNil(t, result.TriggeringError)
	assert.Equal(t, StepName("b"), result.TriggeringError.Step)
	assert.Contains(t, result.TriggeringError.Err.Error(), "panic: boom")
	assert.NotEmpty(t, result.TriggeringError.Stack, "panic stack should be captured")

	// The panic did not prevent a's rollback.
	assert.Equal(t, []string{"do:a", "undo:a"}, calls)
}

func TestRunRecoversCompensationPanic(t *testing.T) {
	var calls []string

	saga, err := NewBuilder("panicky-undo").
		AddStep(okStep("a", &calls)).
		AddStep("b", func(ctx context.Context, sg *Context) (any, error) {
			calls = append(calls, "do:b")
			return nil, nil
		}, func(ctx context.Context, sg *Context) error {
			panic("undo boom")
		}).
		AddStep(failingStep("c", &calls)).
		Build()
	require.NoError(t, err)

	result := NewOrchestrator().Run(context.Background(), saga, NewContext())

	assert.Equal(t, RollbackFailed, result.Rollback)
	require.Len(t, result.CompensationErrors, 1)
	assert.Equal(t, StepName("b"), result.CompensationErrors[0].Step)
	assert.Contains(t, result.CompensationErrors[0].Err.Error(), "panic: undo boom")

	// a's compensation still ran after b's panicked.
	assert.Equal(t, []string{"do:a", "do:b", "do:c", "undo:a"}, calls)
}

func TestRunEventTrace(t *testing.T) {
	var calls []string

	saga, err := NewBuilder("traced").
		AddStep(okStep("a", &calls)).
		AddStep(failingStep("b", &calls)).
		Build()
	require.NoError(t, err)

	result := NewOrchestrator().Run(context.Background(), saga, NewContext())

	types := make([]string, len(result.Events))
	for i, event := range result.Events {
		types[i] = fmt.Sprintf("%s:%s", event.Step, event.Type)
	}
	assert.Equal(t, []string{
		"a:started",
		"a:succeeded",
		"b:started",
		"b:failed",
		"a:undo_started",
		"a:undo_finished",
	}, types)

	for _, event := range result.Events {
		assert.Equal(t, result.SagaID, event.SagaID)
		assert.False(t, event.At.IsZero())
	}
}

func TestRunArchivesTerminalRecord(t *testing.T) {
	var calls []string
	store := NewMemoryStore()

	saga, err := NewBuilder("archived").
		AddStep(okStep("a", &calls)).
		AddStep(failingStep("b", &calls)).
		Build()
	require.NoError(t, err)

	result := NewOrchestrator(WithStore(store)).Run(context.Background(), saga, NewContext())

	record, err := store.Load(context.Background(), result.SagaID.String())
	require.NoError(t, err)

	assert.Equal(t, "archived", record.SagaName)
	assert.Equal(t, "failed", record.Status)
	assert.Equal(t, "completed", record.Rollback)
	assert.Contains(t, record.TriggeringError, "b exploded")
	require.Len(t, record.Steps, 2)
	assert.Equal(t, "a", record.Steps[0].Name)
	assert.Equal(t, StepSucceeded, record.Steps[0].Status)
	assert.Equal(t, "b", record.Steps[1].Name)
	assert.Equal(t, StepFailed, record.Steps[1].Status)
}

func TestRunDefinitionIsReusable(t *testing.T) {
	var calls []string

	saga, err := NewBuilder("reusable").
		AddStep(okStep("a", &calls)).
		Build()
	require.NoError(t, err)

	orch := NewOrchestrator()
	first := orch.Run(context.Background(), saga, NewContext())
	second := orch.Run(context.Background(), saga, NewContext())

	assert.Equal(t, StatusSucceeded, first.Status)
	assert.Equal(t, StatusSucceeded, second.Status)
	assert.NotEqual(t, first.SagaID, second.SagaID)
	assert.Equal(t, []string{"do:a", "do:a"}, calls)
}
