package workerpool

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	bferrors "github.com/vnykmshr/batchflow/pkg/common/errors"
	"github.com/vnykmshr/batchflow/pkg/common/validation"
	"github.com/vnykmshr/batchflow/pkg/scheduling/task"
)

// RejectionPolicy decides what Submit does when every worker is busy,
// the pool is at MaxSize and the queue is full.
type RejectionPolicy int

const (
	// Block suspends the submitter until room frees up, the submit context
	// ends or Config.BlockTimeout elapses.
	Block RejectionPolicy = iota

	// DropNewest discards the submitted task. Its handle resolves with a
	// Rejected error and Submit itself succeeds.
	DropNewest

	// DropOldest evicts the oldest queued task, resolving its handle with a
	// Rejected error, and enqueues the submitted one in its place.
	DropOldest

	// RunInCaller executes the task synchronously on the submitting goroutine.
	RunInCaller

	// Fail makes Submit return a Rejected error immediately.
	Fail
)

var policyNames = map[RejectionPolicy]string{
	Block:       "block",
	DropNewest:  "drop-newest",
	DropOldest:  "drop-oldest",
	RunInCaller: "run-in-caller",
	Fail:        "fail",
}

func (p RejectionPolicy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("RejectionPolicy(%d)", int(p))
}

// ParseRejectionPolicy parses the names produced by RejectionPolicy.String.
// Matching is case-insensitive and accepts underscores for dashes.
func ParseRejectionPolicy(s string) (RejectionPolicy, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for p, name := range policyNames {
		if name == norm {
			return p, nil
		}
	}
	return 0, bferrors.NewValidationError("workerpool", "RejectionPolicy", s, "unknown policy").
		WithHint("use one of block, drop-newest, drop-oldest, run-in-caller, fail")
}

// Pool executes tasks on a bounded set of workers with a bounded queue.
type Pool interface {
	// Submit hands a task to the pool and returns a handle that resolves
	// once the task has run, been rejected or been cancelled. The context
	// bounds admission only; a running task is not cancelled by it.
	Submit(ctx context.Context, t task.Task) (*Handle, error)

	// SubmitWithTimeout submits a task with a timeout for admission.
	SubmitWithTimeout(t task.Task, timeout time.Duration) (*Handle, error)

	// Shutdown stops admission, drains the queue and lets running tasks
	// finish. The returned channel closes once every worker has exited.
	Shutdown() <-chan struct{}

	// ShutdownNow stops admission, cancels running tasks' contexts and
	// resolves queued tasks as cancelled without running them.
	ShutdownNow() <-chan struct{}

	// ShutdownWithTimeout shuts down gracefully, escalating to ShutdownNow
	// if the pool has not drained within timeout.
	ShutdownWithTimeout(timeout time.Duration) <-chan struct{}

	// Size returns the number of live workers.
	Size() int

	// QueueSize returns the number of tasks waiting for a worker.
	QueueSize() int

	// ActiveWorkers returns the number of workers currently executing tasks.
	ActiveWorkers() int

	// TotalSubmitted returns the number of submissions that produced a handle.
	TotalSubmitted() int64

	// TotalCompleted returns the number of tasks that finished executing.
	TotalCompleted() int64

	// Stats returns a snapshot of the pool's counters.
	Stats() Stats

	// Config returns the configuration the pool was built with.
	Config() Config
}

// Config holds configuration options for creating a worker pool.
type Config struct {
	// Name labels log lines and metrics.
	Name string

	// CoreSize workers are started with the pool and never retire.
	CoreSize int

	// MaxSize bounds the number of workers. Workers above CoreSize start
	// only when the queue is full. Must be at least 1 and >= CoreSize.
	MaxSize int

	// QueueCapacity is the number of tasks that may wait for a worker.
	// Zero means direct hand-off to an idle worker.
	QueueCapacity int

	// KeepAlive is how long a worker above CoreSize may stay idle before it
	// retires. Zero retires it as soon as it finds no work.
	KeepAlive time.Duration

	// RejectionPolicy applies when the pool is saturated.
	RejectionPolicy RejectionPolicy

	// BlockTimeout bounds how long a Block submitter waits. Zero waits
	// until the submit context ends.
	BlockTimeout time.Duration

	// TaskTimeout bounds each task's execution. Zero means no timeout.
	TaskTimeout time.Duration

	// Logger receives worker lifecycle and panic logs. Nil disables logging.
	Logger *zap.Logger

	// PanicHandler is called when a task panics. The task is still
	// reported as failed.
	PanicHandler func(taskID string, recovered interface{})

	// OnTaskStart is called on the executing goroutine before a task runs.
	// workerID is -1 for tasks run by the caller.
	OnTaskStart func(workerID int, t task.Task)

	// OnTaskComplete is called after a task has run.
	OnTaskComplete func(workerID int, outcome Outcome)

	// OnReject is called whenever a task is refused or evicted.
	OnReject func(taskID string, err error)
}

// DefaultConfig returns a pool sized to the machine with a bounded queue
// and blocking admission.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Name:            "workerpool",
		CoreSize:        n,
		MaxSize:         n,
		QueueCapacity:   100,
		KeepAlive:       60 * time.Second,
		RejectionPolicy: Block,
	}
}

// FixedConfig returns a configuration with exactly workers workers and the
// given queue capacity, blocking when saturated.
func FixedConfig(workers, queueCapacity int) Config {
	return Config{
		Name:            "workerpool",
		CoreSize:        workers,
		MaxSize:         workers,
		QueueCapacity:   queueCapacity,
		RejectionPolicy: Block,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	const module = "workerpool"
	if _, ok := policyNames[c.RejectionPolicy]; !ok {
		return bferrors.NewValidationError(module, "RejectionPolicy", int(c.RejectionPolicy), "unknown policy")
	}
	return validation.First(
		validation.ValidateNonNegative(module, "CoreSize", c.CoreSize),
		validation.ValidatePositive(module, "MaxSize", c.MaxSize),
		validation.ValidateAtLeast(module, "MaxSize", c.MaxSize, "CoreSize", c.CoreSize),
		validation.ValidateNonNegative(module, "QueueCapacity", c.QueueCapacity),
		validation.ValidateNonNegativeDuration(module, "KeepAlive", c.KeepAlive),
		validation.ValidateNonNegativeDuration(module, "BlockTimeout", c.BlockTimeout),
		validation.ValidateNonNegativeDuration(module, "TaskTimeout", c.TaskTimeout),
	)
}

// Stats is a point-in-time snapshot of a pool.
type Stats struct {
	CoreSize        int
	MaxSize         int
	QueueCapacity   int
	PoolSize        int
	LargestPoolSize int
	ActiveWorkers   int
	Queued          int
	BlockedSubmits  int

	Submitted  int64
	Completed  int64
	Failed     int64
	Rejected   int64
	CallerRuns int64
}

// workerPool implements the Pool interface.
type workerPool struct {
	config Config
	logger *zap.Logger

	// queue holds admitted items. Its capacity is QueueCapacity+MaxSize so
	// that sends made under mu never block; admission limits are enforced
	// by the counters below.
	queue chan *workItem

	baseCtx context.Context
	abort   context.CancelFunc

	mu       sync.Mutex
	closed   bool
	workers  int
	largest  int
	busy     int
	pending  int
	nextID   int
	waiters  []*waiter
	closing  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	killOnce sync.Once
	workerWg sync.WaitGroup

	// Counters, updated atomically
	submitted  int64
	completed  int64
	failed     int64
	rejected   int64
	callerRuns int64
}

// waiter is a Block submitter parked until room frees up.
type waiter struct {
	item  *workItem
	ready chan struct{}
	err   error
}

// New creates a worker pool and starts its core workers.
func New(config Config) (Pool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Name == "" {
		config.Name = "workerpool"
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &workerPool{
		config:  config,
		logger:  logger.With(zap.String("pool", config.Name)),
		queue:   make(chan *workItem, config.QueueCapacity+config.MaxSize),
		baseCtx: ctx,
		abort:   cancel,
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}

	p.mu.Lock()
	for i := 0; i < config.CoreSize; i++ {
		p.spawnLocked(nil)
	}
	p.mu.Unlock()

	return p, nil
}

// NewFixed creates a pool with exactly workers workers and a bounded queue.
func NewFixed(workers, queueCapacity int) (Pool, error) {
	return New(FixedConfig(workers, queueCapacity))
}

func (p *workerPool) Config() Config {
	return p.config
}
