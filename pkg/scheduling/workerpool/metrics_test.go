package workerpool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/batchflow/internal/testutil"
	bferrors "github.com/vnykmshr/batchflow/pkg/common/errors"
	"github.com/vnykmshr/batchflow/pkg/metrics"
	"github.com/vnykmshr/batchflow/pkg/scheduling/task"
)

func TestNewWithMetrics(t *testing.T) {
	cfg := metrics.Config{Enabled: true, Registry: prometheus.NewRegistry()}

	var rejected testutil.Recorder[string]
	pool, err := NewWithMetrics(Config{
		CoreSize:        1,
		MaxSize:         1,
		QueueCapacity:   0,
		RejectionPolicy: DropNewest,
		OnReject: func(taskID string, err error) {
			rejected.Record(taskID)
		},
	}, "instrumented", cfg)
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { <-pool.ShutdownNow() })

	if _, ok := pool.(*MetricsPool); !ok {
		t.Fatalf("expected *MetricsPool, got %T", pool)
	}
	testutil.AssertEqual(t, pool.Config().Name, "instrumented")

	g := newGate()
	h1, err := pool.Submit(context.Background(), g.task("one"))
	testutil.AssertNoError(t, err)
	g.waitStarted(t)

	_, err = pool.Submit(context.Background(), g.task("two"))
	testutil.AssertNoError(t, err)

	g.open()
	wait(t, h1)

	h3, err := pool.Submit(context.Background(), task.Func("three", func(context.Context) error {
		return errors.New("broken")
	}))
	testutil.AssertNoError(t, err)
	wait(t, h3)

	registry := metrics.For(cfg)
	testutil.AssertEqual(t, promtest.ToFloat64(registry.TasksSubmitted.WithLabelValues("instrumented")), float64(3))
	testutil.AssertEqual(t, promtest.ToFloat64(registry.TasksCompleted.WithLabelValues("instrumented")), float64(1))
	testutil.AssertEqual(t, promtest.ToFloat64(registry.TasksFailed.WithLabelValues("instrumented")), float64(1))
	testutil.AssertEqual(t, promtest.ToFloat64(registry.TasksRejected.WithLabelValues("instrumented", "drop-newest")), float64(1))
	testutil.AssertEqual(t, promtest.ToFloat64(registry.WorkerPoolSize.WithLabelValues("instrumented")), float64(1))
	testutil.AssertEqual(t, rejected.Values()[0], "two")
}

func TestMetricsPoolSubmitWithTimeout(t *testing.T) {
	cfg := metrics.Config{Enabled: true, Registry: prometheus.NewRegistry()}
	pool, err := NewWithMetrics(Config{
		CoreSize:        1,
		MaxSize:         1,
		QueueCapacity:   0,
		RejectionPolicy: Block,
	}, "bounded", cfg)
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { <-pool.ShutdownNow() })

	h, err := pool.SubmitWithTimeout(valueTask("unbounded", 1), 0)
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, wait(t, h).Err)

	g := newGate()
	defer g.open()
	_, err = pool.SubmitWithTimeout(g.task("running"), time.Second)
	testutil.AssertNoError(t, err)
	g.waitStarted(t)

	_, err = pool.SubmitWithTimeout(valueTask("blocked", 2), 20*time.Millisecond)
	testutil.AssertErrorIs(t, err, bferrors.ErrTimeout)

	registry := metrics.For(cfg)
	testutil.AssertEqual(t, promtest.ToFloat64(registry.TasksSubmitted.WithLabelValues("bounded")), float64(2))
}

func TestNewWithMetricsDisabled(t *testing.T) {
	pool, err := NewWithMetrics(FixedConfig(1, 1), "plain", metrics.Config{Enabled: false})
	testutil.AssertNoError(t, err)
	defer func() { <-pool.Shutdown() }()

	if _, ok := pool.(*MetricsPool); ok {
		t.Error("disabled metrics should return the plain pool")
	}
	testutil.AssertEqual(t, pool.Config().Name, "plain")
}
