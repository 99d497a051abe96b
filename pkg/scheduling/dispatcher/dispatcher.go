package dispatcher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	bfcontext "github.com/vnykmshr/batchflow/pkg/common/context"
	bferrors "github.com/vnykmshr/batchflow/pkg/common/errors"
	"github.com/vnykmshr/batchflow/pkg/scheduling/task"
	"github.com/vnykmshr/batchflow/pkg/scheduling/workerpool"
)

// Submitter is the part of a worker pool the dispatcher needs.
type Submitter interface {
	Submit(ctx context.Context, t task.Task) (*workerpool.Handle, error)
}

// Dispatcher submits whole batches to a pool and gathers their outcomes.
type Dispatcher struct {
	pool   Submitter
	logger *zap.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger for batch summaries and rejections.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a Dispatcher that submits to pool.
func New(pool Submitter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		pool:   pool,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RunBatch submits batch to pool and waits for every task. See
// Dispatcher.RunBatch.
func RunBatch(ctx context.Context, pool Submitter, batch task.Batch) (task.CycleResult, error) {
	return New(pool).RunBatch(ctx, batch)
}

// RunBatch validates batch, submits its tasks in batch order and waits for
// all of them. A failing task never stops the others: every task ID ends up
// in exactly one of Succeeded or Failed, in batch order.
//
// If ctx ends first, tasks already submitted keep running. RunBatch returns
// the outcomes resolved so far, reports every other task as failed with an
// ErrCancelled error, and returns an error wrapping ErrCancelled.
func (d *Dispatcher) RunBatch(ctx context.Context, batch task.Batch) (task.CycleResult, error) {
	ctx = bfcontext.OrBackground(ctx)
	result := task.CycleResult{
		Cycle:     batch.Cycle,
		StartedAt: time.Now(),
		Values:    make(map[string]any),
	}

	if err := batch.Validate(); err != nil {
		result.FinishedAt = result.StartedAt
		result.Err = err
		return result, err
	}

	handles := make([]*workerpool.Handle, len(batch.Tasks))
	submitErrs := make([]error, len(batch.Tasks))
	c := workerpool.NewCollector(ctx, &result)

	for i, t := range batch.Tasks {
		if err := ctx.Err(); err != nil {
			c.Interrupt(err)
			break
		}
		h, err := d.pool.Submit(ctx, t)
		if err != nil {
			submitErrs[i] = err
			d.logger.Warn("task not admitted",
				zap.Int("cycle", batch.Cycle),
				zap.String("task_id", t.ID),
				zap.Stringer("kind", bferrors.KindOf(err)),
				zap.Error(err))
			continue
		}
		handles[i] = h
	}

	for i, t := range batch.Tasks {
		switch {
		case handles[i] != nil:
			c.Await(handles[i])
		case submitErrs[i] != nil:
			result.Failed = append(result.Failed, task.Failure{TaskID: t.ID, Err: submitErrs[i]})
		default:
			c.Skip(t.ID)
		}
	}

	result.FinishedAt = time.Now()
	d.logger.Debug("batch finished",
		zap.Int("cycle", batch.Cycle),
		zap.Int("tasks", batch.Len()),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)),
		zap.Duration("duration", result.Duration()))

	if interrupted := c.Err(); interrupted != nil {
		err := fmt.Errorf("%w: batch %d interrupted: %w", bferrors.ErrCancelled, batch.Cycle, interrupted)
		result.Err = err
		return result, err
	}
	return result, nil
}
