package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vnykmshr/batchflow/internal/testutil"
	bferrors "github.com/vnykmshr/batchflow/pkg/common/errors"
	"github.com/vnykmshr/batchflow/pkg/scheduling/task"
	"github.com/vnykmshr/batchflow/pkg/scheduling/workerpool"
)

// recordingPool records the order in which tasks reach the pool.
type recordingPool struct {
	workerpool.Pool
	mu  sync.Mutex
	ids []string
}

func (r *recordingPool) Submit(ctx context.Context, t task.Task) (*workerpool.Handle, error) {
	r.mu.Lock()
	r.ids = append(r.ids, t.ID)
	r.mu.Unlock()
	return r.Pool.Submit(ctx, t)
}

func (r *recordingPool) submitted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func newPool(t *testing.T, config workerpool.Config) workerpool.Pool {
	t.Helper()
	pool, err := workerpool.New(config)
	testutil.AssertNoError(t, err)
	t.Cleanup(func() {
		<-pool.ShutdownNow()
	})
	return pool
}

func sleeper(id string, d time.Duration) task.Task {
	return task.New(id, func(ctx context.Context) (any, error) {
		select {
		case <-time.After(d):
			return id, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

func mustBatch(t *testing.T, cycle int, tasks ...task.Task) task.Batch {
	t.Helper()
	b, err := task.NewBatch(cycle, tasks...)
	testutil.AssertNoError(t, err)
	return b
}

func TestRunBatchAllSucceed(t *testing.T) {
	pool := &recordingPool{Pool: newPool(t, workerpool.FixedConfig(3, 10))}
	ids := []string{"t1", "t2", "t3", "t4", "t5"}

	var tasks []task.Task
	for i, id := range ids {
		// Later tasks finish first.
		tasks = append(tasks, sleeper(id, time.Duration(len(ids)-i)*5*time.Millisecond))
	}

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	result, err := RunBatch(ctx, pool, mustBatch(t, 7, tasks...))
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, result.Cycle, 7)
	testutil.AssertEqual(t, result.Total(), len(ids))
	testutil.AssertEqual(t, len(result.Failed), 0)
	for i, id := range ids {
		testutil.AssertEqual(t, result.Succeeded[i], id)
		v, ok := result.Value(id)
		testutil.AssertEqual(t, ok, true)
		testutil.AssertEqual(t, v, any(id))
	}
	testutil.AssertEqual(t, len(pool.submitted()), len(ids))
	for i, id := range pool.submitted() {
		testutil.AssertEqual(t, id, ids[i])
	}
	if result.FinishedAt.Before(result.StartedAt) {
		t.Error("FinishedAt before StartedAt")
	}
	testutil.AssertNoError(t, result.Err)
}

func TestRunBatchPartialFailure(t *testing.T) {
	pool := newPool(t, workerpool.FixedConfig(2, 10))
	boom := errors.New("boom")

	batch := mustBatch(t, 1,
		task.New("ok-1", func(context.Context) (any, error) { return 1, nil }),
		task.Func("err", func(context.Context) error { return boom }),
		task.New("panic", func(context.Context) (any, error) { panic("bad input") }),
		task.New("ok-2", func(context.Context) (any, error) { return 2, nil }),
	)

	result, err := New(pool).RunBatch(context.Background(), batch)
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, len(result.Succeeded), 2)
	testutil.AssertEqual(t, result.Succeeded[0], "ok-1")
	testutil.AssertEqual(t, result.Succeeded[1], "ok-2")
	testutil.AssertEqual(t, len(result.Failed), 2)

	errOf, ok := result.FailureOf("err")
	testutil.AssertEqual(t, ok, true)
	testutil.AssertErrorIs(t, errOf, boom)

	panicOf, ok := result.FailureOf("panic")
	testutil.AssertEqual(t, ok, true)
	var terr *bferrors.TaskError
	if !errors.As(panicOf, &terr) || terr.Panic == nil {
		t.Errorf("expected panic TaskError, got %v", panicOf)
	}

	combined := result.Errors()
	testutil.AssertErrorIs(t, combined, boom)
}

func TestRunBatchRejectedTasks(t *testing.T) {
	pool := newPool(t, workerpool.Config{
		CoreSize:        1,
		MaxSize:         1,
		QueueCapacity:   0,
		RejectionPolicy: workerpool.Fail,
	})

	batch := mustBatch(t, 2,
		sleeper("first", 30*time.Millisecond),
		sleeper("second", time.Millisecond),
		sleeper("third", time.Millisecond),
	)

	result, err := RunBatch(context.Background(), pool, batch)
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, result.Total(), 3)
	testutil.AssertEqual(t, len(result.Succeeded), 1)
	testutil.AssertEqual(t, result.Succeeded[0], "first")
	for _, id := range []string{"second", "third"} {
		err, ok := result.FailureOf(id)
		testutil.AssertEqual(t, ok, true)
		testutil.AssertEqual(t, bferrors.KindOf(err), bferrors.KindRejected)
	}
}

func TestRunBatchCancellation(t *testing.T) {
	pool := newPool(t, workerpool.FixedConfig(1, 10))

	var finished testutil.Recorder[string]
	slow := func(id string) task.Task {
		return task.Func(id, func(ctx context.Context) error {
			select {
			case <-time.After(150 * time.Millisecond):
				finished.Record(id)
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	batch := mustBatch(t, 4, slow("a"), slow("b"), slow("c"))

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	start := time.Now()
	result, err := RunBatch(ctx, pool, batch)
	if elapsed := time.Since(start); elapsed > 120*time.Millisecond {
		t.Errorf("RunBatch returned after %v, expected an early return", elapsed)
	}

	testutil.AssertErrorIs(t, err, bferrors.ErrCancelled)
	testutil.AssertErrorIs(t, err, context.DeadlineExceeded)
	testutil.AssertErrorIs(t, result.Err, bferrors.ErrCancelled)
	testutil.AssertEqual(t, result.Total(), 3)
	testutil.AssertEqual(t, len(result.Failed), 3)
	for _, f := range result.Failed {
		testutil.AssertEqual(t, bferrors.KindOf(f.Err), bferrors.KindCancelled)
	}

	// Dispatched work is not cancelled by the batch context.
	testutil.Eventually(t, func() bool { return finished.Len() >= 1 }, time.Second, 10*time.Millisecond)
}

func TestRunBatchDeadlineReportsCancelled(t *testing.T) {
	pool := newPool(t, workerpool.FixedConfig(1, 1))
	batch := mustBatch(t, 7, sleeper("a", 100*time.Millisecond), sleeper("b", 100*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result, err := RunBatch(ctx, pool, batch)
	testutil.AssertEqual(t, bferrors.KindOf(err), bferrors.KindCancelled)
	testutil.AssertEqual(t, len(result.Failed), 2)
	for _, f := range result.Failed {
		testutil.AssertErrorIs(t, f.Err, context.DeadlineExceeded)
		testutil.AssertEqual(t, bferrors.KindOf(f.Err), bferrors.KindCancelled)
	}
}

func TestRunBatchAlreadyCancelled(t *testing.T) {
	pool := &recordingPool{Pool: newPool(t, workerpool.FixedConfig(1, 1))}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := RunBatch(ctx, pool, mustBatch(t, 5, sleeper("a", time.Millisecond), sleeper("b", time.Millisecond)))
	testutil.AssertErrorIs(t, err, bferrors.ErrCancelled)
	testutil.AssertEqual(t, len(pool.submitted()), 0)
	testutil.AssertEqual(t, len(result.Failed), 2)
	testutil.AssertEqual(t, result.Failed[0].TaskID, "a")
	testutil.AssertEqual(t, result.Failed[1].TaskID, "b")
	testutil.AssertEqual(t, bferrors.KindOf(result.Failed[1].Err), bferrors.KindCancelled)
}

func TestRunBatchInvalidBatch(t *testing.T) {
	pool := &recordingPool{Pool: newPool(t, workerpool.FixedConfig(1, 1))}

	batch := task.Batch{Cycle: 6, Tasks: []task.Task{
		sleeper("dup", time.Millisecond),
		sleeper("dup", time.Millisecond),
	}}
	result, err := RunBatch(context.Background(), pool, batch)
	testutil.AssertErrorIs(t, err, bferrors.ErrInvalidConfiguration)
	testutil.AssertErrorIs(t, result.Err, bferrors.ErrInvalidConfiguration)
	testutil.AssertEqual(t, result.Total(), 0)
	testutil.AssertEqual(t, len(pool.submitted()), 0)
}

func TestRunBatchEmpty(t *testing.T) {
	pool := newPool(t, workerpool.FixedConfig(1, 1))

	result, err := RunBatch(context.Background(), pool, task.Batch{Cycle: 9})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, result.Total(), 0)
	testutil.AssertEqual(t, result.Cycle, 9)
}

func TestRunBatchBackpressure(t *testing.T) {
	pool := newPool(t, workerpool.Config{
		CoreSize:        2,
		MaxSize:         2,
		QueueCapacity:   1,
		RejectionPolicy: workerpool.Block,
	})

	var running testutil.Gauge
	var tasks []task.Task
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		tasks = append(tasks, task.Func(id, func(context.Context) error {
			running.Inc()
			defer running.Dec()
			time.Sleep(10 * time.Millisecond)
			return nil
		}))
	}

	result, err := RunBatch(context.Background(), pool, mustBatch(t, 10, tasks...))
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(result.Succeeded), 6)
	if peak := running.Peak(); peak > 2 {
		t.Errorf("peak concurrency %d exceeds pool size", peak)
	}
}
