package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/vnykmshr/batchflow/internal/config"
	bferrors "github.com/vnykmshr/batchflow/pkg/common/errors"
	"github.com/vnykmshr/batchflow/pkg/scheduling/task"
)

var errSimulated = errors.New("simulated failure")

// workload produces synthetic batches. Tasks that fail with a retryable
// error are carried into the next cycle's batch.
type workload struct {
	cfg config.Demo

	mu      sync.Mutex
	nextID  int
	carried []string
}

func newWorkload(cfg config.Demo) *workload {
	return &workload{cfg: cfg, nextID: 1}
}

// produce builds the batch for cycle: carried-over failures first, then
// cfg.Tasks fresh tasks.
func (w *workload) produce(_ context.Context, cycle int) (task.Batch, error) {
	w.mu.Lock()
	ids := w.carried
	w.carried = nil
	for i := 0; i < w.cfg.Tasks; i++ {
		ids = append(ids, fmt.Sprintf("task-%d", w.nextID))
		w.nextID++
	}
	w.mu.Unlock()

	tasks := make([]task.Task, 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, task.WithRetry(task.New(id, w.simulate), task.RetryOptions{
			MaxTries:        uint(w.cfg.Retries) + 1,
			InitialInterval: 20 * time.Millisecond,
			MaxInterval:     200 * time.Millisecond,
			Retryable:       func(err error) bool { return errors.Is(err, errSimulated) },
		}))
	}
	return task.NewBatch(cycle, tasks...)
}

// OnCycleComplete remembers the failures worth another attempt.
func (w *workload) OnCycleComplete(result task.CycleResult) {
	var retry []string
	for _, f := range result.Failed {
		if errors.Is(f.Err, errSimulated) || bferrors.IsRetryable(f.Err) {
			retry = append(retry, f.TaskID)
		}
	}

	w.mu.Lock()
	w.carried = append(w.carried, retry...)
	w.mu.Unlock()
}

func (w *workload) simulate(ctx context.Context) (any, error) {
	d := w.cfg.MinDuration
	if spread := w.cfg.MaxDuration - w.cfg.MinDuration; spread > 0 {
		d += rand.N(spread)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if rand.Float64() < w.cfg.FailureRate {
		return nil, errSimulated
	}
	return d, nil
}
