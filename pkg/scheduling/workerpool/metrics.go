package workerpool

import (
	"context"
	"time"

	"github.com/vnykmshr/batchflow/pkg/metrics"
	"github.com/vnykmshr/batchflow/pkg/scheduling/task"
)

// MetricsPool wraps a worker Pool with Prometheus metrics collection.
type MetricsPool struct {
	pool     Pool
	name     string
	policy   string
	registry *metrics.Registry
}

// NewWithMetrics creates a worker pool that reports to the registry
// described by metricsConfig. When metrics are disabled it returns the
// plain pool.
func NewWithMetrics(config Config, name string, metricsConfig metrics.Config) (Pool, error) {
	registry := metrics.For(metricsConfig)
	if registry == nil {
		config.Name = name
		return New(config)
	}

	mp := &MetricsPool{
		name:     name,
		policy:   config.RejectionPolicy.String(),
		registry: registry,
	}

	// Chain the caller's hooks after the metrics hooks.
	onComplete := config.OnTaskComplete
	config.OnTaskComplete = func(workerID int, o Outcome) {
		mp.observe(o)
		if onComplete != nil {
			onComplete(workerID, o)
		}
	}
	onReject := config.OnReject
	config.OnReject = func(taskID string, err error) {
		mp.registry.TasksRejected.WithLabelValues(mp.name, mp.policy).Inc()
		if onReject != nil {
			onReject(taskID, err)
		}
	}
	config.Name = name

	base, err := New(config)
	if err != nil {
		return nil, err
	}
	mp.pool = base
	mp.updateMetrics()
	return mp, nil
}

// updateMetrics updates the current state metrics.
func (mp *MetricsPool) updateMetrics() {
	s := mp.pool.Stats()
	mp.registry.WorkerPoolSize.WithLabelValues(mp.name).Set(float64(s.PoolSize))
	mp.registry.WorkerPoolActive.WithLabelValues(mp.name).Set(float64(s.ActiveWorkers))
	mp.registry.WorkerPoolQueued.WithLabelValues(mp.name).Set(float64(s.Queued))
	mp.registry.WorkerPoolBlocked.WithLabelValues(mp.name).Set(float64(s.BlockedSubmits))
}

func (mp *MetricsPool) observe(o Outcome) {
	mp.registry.TaskQueueWait.WithLabelValues(mp.name).Observe(o.QueueWait.Seconds())
	mp.registry.TaskExecutionDuration.WithLabelValues(mp.name).Observe(o.Duration.Seconds())
	if o.Err != nil {
		mp.registry.TasksFailed.WithLabelValues(mp.name).Inc()
	} else {
		mp.registry.TasksCompleted.WithLabelValues(mp.name).Inc()
	}
	if o.CallerRan {
		mp.registry.CallerRuns.WithLabelValues(mp.name).Inc()
	}
	mp.updateMetrics()
}

// Submit adds a task to the pool for execution.
func (mp *MetricsPool) Submit(ctx context.Context, t task.Task) (*Handle, error) {
	h, err := mp.pool.Submit(ctx, t)
	if err == nil {
		mp.registry.TasksSubmitted.WithLabelValues(mp.name).Inc()
	}
	mp.updateMetrics()
	return h, err
}

// SubmitWithTimeout submits a task with a timeout for admission. A
// non-positive timeout leaves admission unbounded.
func (mp *MetricsPool) SubmitWithTimeout(t task.Task, timeout time.Duration) (*Handle, error) {
	h, err := mp.pool.SubmitWithTimeout(t, timeout)
	if err == nil {
		mp.registry.TasksSubmitted.WithLabelValues(mp.name).Inc()
	}
	mp.updateMetrics()
	return h, err
}

// Shutdown initiates graceful shutdown of the pool.
func (mp *MetricsPool) Shutdown() <-chan struct{} {
	return mp.pool.Shutdown()
}

// ShutdownNow stops the pool and cancels outstanding work.
func (mp *MetricsPool) ShutdownNow() <-chan struct{} {
	return mp.pool.ShutdownNow()
}

// ShutdownWithTimeout shuts down the pool with a timeout.
func (mp *MetricsPool) ShutdownWithTimeout(timeout time.Duration) <-chan struct{} {
	return mp.pool.ShutdownWithTimeout(timeout)
}

// Size returns the current number of workers.
func (mp *MetricsPool) Size() int {
	return mp.pool.Size()
}

// QueueSize returns the current number of queued tasks.
func (mp *MetricsPool) QueueSize() int {
	queueSize := mp.pool.QueueSize()
	mp.registry.WorkerPoolQueued.WithLabelValues(mp.name).Set(float64(queueSize))
	return queueSize
}

// ActiveWorkers returns the number of workers currently executing tasks.
func (mp *MetricsPool) ActiveWorkers() int {
	activeWorkers := mp.pool.ActiveWorkers()
	mp.registry.WorkerPoolActive.WithLabelValues(mp.name).Set(float64(activeWorkers))
	return activeWorkers
}

// TotalSubmitted returns the total number of tasks submitted.
func (mp *MetricsPool) TotalSubmitted() int64 {
	return mp.pool.TotalSubmitted()
}

// TotalCompleted returns the total number of tasks completed.
func (mp *MetricsPool) TotalCompleted() int64 {
	return mp.pool.TotalCompleted()
}

// Stats returns a snapshot of the wrapped pool.
func (mp *MetricsPool) Stats() Stats {
	return mp.pool.Stats()
}

// Config returns the wrapped pool's configuration.
func (mp *MetricsPool) Config() Config {
	return mp.pool.Config()
}
