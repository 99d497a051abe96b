package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name unless Config.Namespace is set.
const DefaultNamespace = "batchflow"

// Registry holds all metric instances for batchflow components.
type Registry struct {
	// Worker Pool Metrics
	WorkerPoolSize        *prometheus.GaugeVec
	WorkerPoolActive      *prometheus.GaugeVec
	WorkerPoolQueued      *prometheus.GaugeVec
	WorkerPoolBlocked     *prometheus.GaugeVec
	TasksSubmitted        *prometheus.CounterVec
	TasksCompleted        *prometheus.CounterVec
	TasksFailed           *prometheus.CounterVec
	TasksRejected         *prometheus.CounterVec
	CallerRuns            *prometheus.CounterVec
	TaskExecutionDuration *prometheus.HistogramVec
	TaskQueueWait         *prometheus.HistogramVec

	// Scheduler Metrics
	CyclesCompleted *prometheus.CounterVec
	CycleDuration   *prometheus.HistogramVec
	CycleTasks      *prometheus.CounterVec
	SkippedTicks    *prometheus.CounterVec
	ProducerErrors  *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by batchflow components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
	registries.Store(registryKey{prometheus.DefaultRegisterer, DefaultNamespace}, DefaultRegistry)
}

type registryKey struct {
	reg       prometheus.Registerer
	namespace string
}

// registries caches one Registry per registerer and namespace, since
// registering the same collectors twice panics.
var (
	registries sync.Map
	createMu   sync.Mutex
)

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return newRegistry(reg, DefaultNamespace, nil)
}

// For returns the registry described by cfg, creating and registering it
// on first use. It returns nil when cfg is disabled.
func For(cfg Config) *Registry {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}

	key := registryKey{cfg.Registry, cfg.Namespace}
	if r, ok := registries.Load(key); ok {
		return r.(*Registry)
	}

	createMu.Lock()
	defer createMu.Unlock()
	if r, ok := registries.Load(key); ok {
		return r.(*Registry)
	}
	r := newRegistry(cfg.Registry, cfg.Namespace, cfg.Labels)
	registries.Store(key, r)
	return r
}

func newRegistry(reg prometheus.Registerer, namespace string, labels prometheus.Labels) *Registry {
	factory := promauto.With(reg)

	poolLabels := []string{"pool_name"}
	schedulerLabels := []string{"scheduler_name"}

	return &Registry{
		// Worker Pool Metrics
		WorkerPoolSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "workerpool",
				Name:        "size",
				Help:        "Current number of live workers",
				ConstLabels: labels,
			},
			poolLabels,
		),

		WorkerPoolActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "workerpool",
				Name:        "active_workers",
				Help:        "Number of workers executing a task",
				ConstLabels: labels,
			},
			poolLabels,
		),

		WorkerPoolQueued: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "workerpool",
				Name:        "queued_tasks",
				Help:        "Number of tasks waiting for a worker",
				ConstLabels: labels,
			},
			poolLabels,
		),

		WorkerPoolBlocked: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "workerpool",
				Name:        "blocked_submits",
				Help:        "Number of submitters waiting for room",
				ConstLabels: labels,
			},
			poolLabels,
		),

		TasksSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "workerpool",
				Name:        "tasks_submitted_total",
				Help:        "Total number of tasks accepted by Submit",
				ConstLabels: labels,
			},
			poolLabels,
		),

		TasksCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "workerpool",
				Name:        "tasks_completed_total",
				Help:        "Total number of tasks completed successfully",
				ConstLabels: labels,
			},
			poolLabels,
		),

		TasksFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "workerpool",
				Name:        "tasks_failed_total",
				Help:        "Total number of tasks that returned an error or panicked",
				ConstLabels: labels,
			},
			poolLabels,
		),

		TasksRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "workerpool",
				Name:        "tasks_rejected_total",
				Help:        "Total number of tasks refused or evicted",
				ConstLabels: labels,
			},
			[]string{"pool_name", "policy"},
		),

		CallerRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "workerpool",
				Name:        "caller_runs_total",
				Help:        "Total number of tasks run on the submitting goroutine",
				ConstLabels: labels,
			},
			poolLabels,
		),

		TaskExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "workerpool",
				Name:        "task_duration_seconds",
				Help:        "Time spent executing tasks",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			poolLabels,
		),

		TaskQueueWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "workerpool",
				Name:        "task_queue_wait_seconds",
				Help:        "Time between submission and the start of execution",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			poolLabels,
		),

		// Scheduler Metrics
		CyclesCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "scheduler",
				Name:        "cycles_total",
				Help:        "Total number of completed batch cycles",
				ConstLabels: labels,
			},
			schedulerLabels,
		),

		CycleDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "scheduler",
				Name:        "cycle_duration_seconds",
				Help:        "Time from batch production to the last task outcome",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			schedulerLabels,
		),

		CycleTasks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "scheduler",
				Name:        "cycle_tasks_total",
				Help:        "Total number of task outcomes reported by cycles",
				ConstLabels: labels,
			},
			[]string{"scheduler_name", "outcome"},
		),

		SkippedTicks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "scheduler",
				Name:        "skipped_ticks_total",
				Help:        "Total number of ticks skipped because a cycle overran",
				ConstLabels: labels,
			},
			schedulerLabels,
		),

		ProducerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "scheduler",
				Name:        "producer_errors_total",
				Help:        "Total number of cycles whose batch producer failed",
				ConstLabels: labels,
			},
			schedulerLabels,
		),
	}
}
