package task

import (
	"time"

	"go.uber.org/multierr"
)

// Failure pairs a task ID with the error that ended it.
type Failure struct {
	TaskID string
	Err    error
}

// CycleResult is the consolidated outcome of one batch. Every task of the
// batch appears in exactly one of Succeeded or Failed. Consumers must not
// rely on completion order: both lists follow batch order.
type CycleResult struct {
	Cycle      int
	StartedAt  time.Time
	FinishedAt time.Time

	Succeeded []string
	Failed    []Failure

	// Values holds the value returned by each succeeded task.
	Values map[string]any

	// Err is a scheduler-level condition for the whole cycle, such as a
	// failed batch producer or an interrupted batch. Nil for normal cycles.
	Err error
}

// Total returns the number of task outcomes in the result.
func (r CycleResult) Total() int {
	return len(r.Succeeded) + len(r.Failed)
}

// Duration returns how long the cycle took.
func (r CycleResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Value returns the value produced by a succeeded task.
func (r CycleResult) Value(id string) (any, bool) {
	v, ok := r.Values[id]
	return v, ok
}

// FailureOf returns the error recorded for a failed task.
func (r CycleResult) FailureOf(id string) (error, bool) {
	for _, f := range r.Failed {
		if f.TaskID == id {
			return f.Err, true
		}
	}
	return nil, false
}

// FailedIDs returns the IDs of failed tasks in batch order.
func (r CycleResult) FailedIDs() []string {
	ids := make([]string, len(r.Failed))
	for i, f := range r.Failed {
		ids[i] = f.TaskID
	}
	return ids
}

// Errors combines the cycle error and every task failure into one error.
func (r CycleResult) Errors() error {
	errs := make([]error, 0, len(r.Failed)+1)
	if r.Err != nil {
		errs = append(errs, r.Err)
	}
	for _, f := range r.Failed {
		errs = append(errs, f.Err)
	}
	return multierr.Combine(errs...)
}
