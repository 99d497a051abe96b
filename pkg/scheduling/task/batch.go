package task

import (
	"fmt"

	bferrors "github.com/vnykmshr/batchflow/pkg/common/errors"
)

// Batch is an ordered sequence of tasks dispatched together in one
// scheduler cycle. Task IDs are unique within a batch.
type Batch struct {
	Cycle int
	Tasks []Task
}

// NewBatch builds and validates a batch.
func NewBatch(cycle int, tasks ...Task) (Batch, error) {
	b := Batch{Cycle: cycle, Tasks: tasks}
	if err := b.Validate(); err != nil {
		return Batch{}, err
	}
	return b, nil
}

// Validate checks that every task is valid and that IDs are unique.
func (b Batch) Validate() error {
	seen := make(map[string]int, len(b.Tasks))
	for i, t := range b.Tasks {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("batch task %d: %w", i, err)
		}
		if prev, dup := seen[t.ID]; dup {
			return bferrors.NewValidationError("batch", "Tasks", t.ID, "duplicate task ID").
				WithHint(fmt.Sprintf("tasks %d and %d share an ID", prev, i))
		}
		seen[t.ID] = i
	}
	return nil
}

// Len returns the number of tasks.
func (b Batch) Len() int {
	return len(b.Tasks)
}

// IDs returns the task IDs in batch order.
func (b Batch) IDs() []string {
	ids := make([]string, len(b.Tasks))
	for i, t := range b.Tasks {
		ids[i] = t.ID
	}
	return ids
}
