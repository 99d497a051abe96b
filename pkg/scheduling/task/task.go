package task

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	bferrors "github.com/vnykmshr/batchflow/pkg/common/errors"
	"github.com/vnykmshr/batchflow/pkg/common/validation"
)

// Action is the work performed by a Task. It should respect context
// cancellation and return either a value or an error.
type Action func(ctx context.Context) (any, error)

// Task is a unit of work with a stable identity. A Task is immutable once
// submitted and is executed at most once per submission.
type Task struct {
	// ID identifies the task within its batch.
	ID string

	// Action is invoked by a worker with the task's execution context.
	Action Action
}

// New creates a Task.
func New(id string, action Action) Task {
	return Task{ID: id, Action: action}
}

// Func creates a Task from an action that only reports an error.
func Func(id string, fn func(ctx context.Context) error) Task {
	return Task{ID: id, Action: func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	}}
}

// Anonymous creates a Task with a random UUID.
func Anonymous(action Action) Task {
	return Task{ID: uuid.NewString(), Action: action}
}

// Validate reports whether the task can be submitted.
func (t Task) Validate() error {
	if err := validation.ValidateNotEmpty("task", "ID", t.ID); err != nil {
		return err
	}
	if t.Action == nil {
		return bferrors.NewValidationError("task", "Action", nil, "cannot be nil").
			WithHint(fmt.Sprintf("provide an action for task %q", t.ID))
	}
	return nil
}
