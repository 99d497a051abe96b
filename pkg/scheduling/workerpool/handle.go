package workerpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	bfcontext "github.com/vnykmshr/batchflow/pkg/common/context"
	bferrors "github.com/vnykmshr/batchflow/pkg/common/errors"
	"github.com/vnykmshr/batchflow/pkg/scheduling/task"
)

// Outcome is the final state of a submitted task.
type Outcome struct {
	TaskID string
	Value  any
	Err    error

	// WorkerID is the worker that ran the task, or -1 if the caller ran it
	// or it never ran.
	WorkerID  int
	CallerRan bool

	// QueueWait is the time between submission and the start of execution.
	QueueWait time.Duration
	Duration  time.Duration
}

// Succeeded reports whether the task ran to completion without error.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Handle tracks a single submitted task. It resolves exactly once.
type Handle struct {
	id      string
	done    chan struct{}
	once    sync.Once
	outcome Outcome
	release func()
}

func newHandle(id string, release func()) *Handle {
	return &Handle{
		id:      id,
		done:    make(chan struct{}),
		release: release,
	}
}

// ID returns the task ID.
func (h *Handle) ID() string {
	return h.id
}

// Done returns a channel that is closed once the handle has resolved.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the task resolves or ctx ends.
func (h *Handle) Wait(ctx context.Context) (Outcome, error) {
	ctx = bfcontext.OrBackground(ctx)
	select {
	case <-h.done:
		return h.outcome, nil
	case <-ctx.Done():
		return Outcome{}, fmt.Errorf("%w: waiting for task %q: %w", bferrors.ErrCancelled, h.id, ctx.Err())
	}
}

// Outcome returns the final outcome without blocking. ok is false while the
// task is still queued or running.
func (h *Handle) Outcome() (outcome Outcome, ok bool) {
	select {
	case <-h.done:
		return h.outcome, true
	default:
		return Outcome{}, false
	}
}

// Cancel cancels the task's context. A queued task resolves as cancelled
// without running; a running task sees its context end.
func (h *Handle) Cancel() {
	if h.release != nil {
		h.release()
	}
}

// resolve records the outcome. Only the first call has any effect.
func (h *Handle) resolve(o Outcome) bool {
	resolved := false
	h.once.Do(func() {
		o.TaskID = h.id
		h.outcome = o
		close(h.done)
		resolved = true
	})
	if resolved && h.release != nil {
		h.release()
	}
	return resolved
}

// AwaitAll waits for every handle and gathers the outcomes into a
// CycleResult, in handle order. If ctx ends first, the handles that have
// not resolved are reported as failures and the context error is returned
// alongside the partial result.
func AwaitAll(ctx context.Context, handles ...*Handle) (task.CycleResult, error) {
	result := task.CycleResult{
		StartedAt: time.Now(),
		Values:    make(map[string]any),
	}

	c := NewCollector(ctx, &result)
	for _, h := range handles {
		if h != nil {
			c.Await(h)
		}
	}

	result.FinishedAt = time.Now()
	if err := c.Err(); err != nil {
		return result, fmt.Errorf("%w: awaiting %d tasks: %w", bferrors.ErrCancelled, len(handles), err)
	}
	return result, nil
}

// Collector records handle outcomes into a CycleResult in the order they
// are awaited. Once its context ends it stops waiting: every handle
// awaited afterwards that has not resolved is recorded as a cancelled
// failure.
type Collector struct {
	ctx         context.Context
	result      *task.CycleResult
	interrupted error
}

// NewCollector returns a Collector that records into result.
func NewCollector(ctx context.Context, result *task.CycleResult) *Collector {
	return &Collector{ctx: bfcontext.OrBackground(ctx), result: result}
}

// Await waits for h, unless collection was already interrupted, and
// records its outcome.
func (c *Collector) Await(h *Handle) {
	if c.interrupted == nil {
		select {
		case <-h.Done():
		case <-c.ctx.Done():
			c.interrupted = c.ctx.Err()
		}
	}

	o, ok := h.Outcome()
	if !ok {
		c.result.Failed = append(c.result.Failed, task.Failure{
			TaskID: h.ID(),
			Err:    fmt.Errorf("%w: task %q still in flight: %w", bferrors.ErrCancelled, h.ID(), c.interrupted),
		})
		return
	}
	Record(c.result, o)
}

// Interrupt stops further waiting with cause. Only the first cause is kept.
func (c *Collector) Interrupt(cause error) {
	if c.interrupted == nil {
		c.interrupted = cause
	}
}

// Skip records taskID as cancelled without ever having been submitted.
func (c *Collector) Skip(taskID string) {
	c.result.Failed = append(c.result.Failed, task.Failure{
		TaskID: taskID,
		Err:    fmt.Errorf("%w: task %q not submitted: %w", bferrors.ErrCancelled, taskID, c.interrupted),
	})
}

// Err returns the context error that interrupted collection, or nil.
func (c *Collector) Err() error {
	return c.interrupted
}

// Record adds o to r as a success or a failure.
func Record(r *task.CycleResult, o Outcome) {
	if o.Err != nil {
		r.Failed = append(r.Failed, task.Failure{TaskID: o.TaskID, Err: o.Err})
		return
	}
	r.Succeeded = append(r.Succeeded, o.TaskID)
	if r.Values == nil {
		r.Values = make(map[string]any)
	}
	r.Values[o.TaskID] = o.Value
}
