package unwind

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionErrorWrapsCause(t *testing.T) {
	cause := fmt.Errorf("card declined")
	err := &ExecutionError{Step: "validate_payment", Err: cause}

	assert.EqualError(t, err, `step "validate_payment": action failed: card declined`)
	assert.ErrorIs(t, err, cause)
}

func TestCompensationErrorWrapsCause(t *testing.T) {
	cause := fmt.Errorf("refund rejected")
	err := &CompensationError{Step: "validate_payment", Err: cause}

	assert.EqualError(t, err, `step "validate_payment": compensation failed: refund rejected`)
	assert.ErrorIs(t, err, cause)
}

func TestSagaErrorFormatsFullDiagnostics(t *testing.T) {
	err := &SagaError{
		Triggering: &ExecutionError{
			Step:  "c",
			Err:   fmt.Errorf("c exploded"),
			Stack: "frame1\nframe2",
		},
		CompensationErrors: []*CompensationError{
			{Step: "b", Err: fmt.Errorf("undo b exploded"), Stack: "frameX"},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, `transaction failed at step "c": c exploded`)
	assert.Contains(t, msg, "  frame1\n  frame2")
	assert.Contains(t, msg, "compensations encountered errors:")
	assert.Contains(t, msg, `- step "b": undo b exploded`)
	assert.Contains(t, msg, "      frameX")
}

func TestResultErrUnwrapsToTriggeringCause(t *testing.T) {
	cause := fmt.Errorf("c exploded")

	saga, err := NewBuilder("unwrap").
		AddStep("a", noopAction, nil).
		AddStep("c", func(ctx context.Context, sg *Context) (any, error) {
			return nil, cause
		}, nil).
		Build()
	require.NoError(t, err)

	result := NewOrchestrator().Run(context.Background(), saga, NewContext())

	runErr := result.Err()
	require.Error(t, runErr)

	var sagaErr *SagaError
	require.True(t, errors.As(runErr, &sagaErr))
	assert.ErrorIs(t, runErr, cause)

	var execErr *ExecutionError
	require.True(t, errors.As(runErr, &execErr))
	assert.Equal(t, StepName("c"), execErr.Step)
	assert.NotEmpty(t, execErr.Stack)
}

func TestCaptureStackNamesCaller(t *testing.T) {
	stack := captureStack(0)
	assert.Contains(t, stack, "TestCaptureStackNamesCaller")
}
