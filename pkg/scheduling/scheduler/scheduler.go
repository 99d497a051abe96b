package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	bfcontext "github.com/vnykmshr/batchflow/pkg/common/context"
	bferrors "github.com/vnykmshr/batchflow/pkg/common/errors"
	"github.com/vnykmshr/batchflow/pkg/metrics"
	"github.com/vnykmshr/batchflow/pkg/scheduling/dispatcher"
	"github.com/vnykmshr/batchflow/pkg/scheduling/task"
	"github.com/vnykmshr/batchflow/pkg/scheduling/workerpool"
)

var (
	// ErrAlreadyStarted is returned by Start on a running scheduler.
	ErrAlreadyStarted = errors.New("scheduler already started")

	// ErrStopped is returned by Start on a stopped scheduler.
	ErrStopped = fmt.Errorf("scheduler stopped: %w", bferrors.ErrClosed)
)

// Scheduler drives repeated batch cycles on a worker pool. Cycles never
// overlap: the next cycle starts only after the previous one has been
// reported to the observer.
type Scheduler struct {
	config     Config
	cadence    cadence
	pool       workerpool.Pool
	ownPool    bool
	dispatcher *dispatcher.Dispatcher
	logger     *zap.Logger
	metrics    *metrics.Registry

	state   atomic.Int32
	cycles  atomic.Int64
	skipped atomic.Int64

	// stopCh is closed by any Stop call; abort by Stop(false) or when the
	// Start context ends.
	stopCh    chan struct{}
	stopOnce  sync.Once
	abortCtx  context.Context
	abort     context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// New validates config and creates an idle Scheduler.
func New(config Config) (*Scheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Name == "" {
		config.Name = "scheduler"
	}
	cad, err := newCadence(config)
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("scheduler", config.Name))

	s := &Scheduler{
		config:  config,
		cadence: cad,
		pool:    config.Pool,
		logger:  logger,
		metrics: metrics.For(config.Metrics),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	s.abortCtx, s.abort = context.WithCancel(context.Background())

	if s.pool == nil {
		poolConfig := config.PoolConfig
		if poolConfig.MaxSize == 0 {
			poolConfig = workerpool.FixedConfig(4, 100)
		}
		if poolConfig.Logger == nil {
			poolConfig.Logger = config.Logger
		}
		pool, err := workerpool.NewWithMetrics(poolConfig, config.Name, config.Metrics)
		if err != nil {
			return nil, err
		}
		s.pool = pool
		s.ownPool = true
	}
	s.dispatcher = dispatcher.New(s.pool, dispatcher.WithLogger(logger))

	return s, nil
}

// Start begins firing cycles. Cancelling ctx has the same effect as
// Stop(false).
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(Idle), int32(Running)) {
		if s.State() == Running {
			return bferrors.NewOperationError("scheduler", "Start", ErrAlreadyStarted).WithContext(s.config.Name)
		}
		return bferrors.NewOperationError("scheduler", "Start", ErrStopped).WithContext(s.config.Name)
	}

	ctx = bfcontext.OrBackground(ctx)
	s.logger.Info("scheduler started",
		zap.Stringer("mode", s.config.Mode),
		zap.Duration("period", s.config.Period),
		zap.String("cron", s.config.CronExpr))

	go s.run(ctx)
	return nil
}

// Stop halts the scheduler. With awaitCurrentCycle the in-flight cycle, if
// any, runs to completion; otherwise its context is cancelled and it is
// reported with the outcomes resolved so far. No cycle starts after Stop.
// The returned channel closes once the scheduler is Stopped. Stop is
// idempotent, and Stop(false) escalates an earlier Stop(true).
func (s *Scheduler) Stop(awaitCurrentCycle bool) <-chan struct{} {
	if !awaitCurrentCycle {
		s.abort()
	}
	if s.state.CompareAndSwap(int32(Idle), int32(Stopped)) {
		s.stopOnce.Do(func() { close(s.stopCh) })
		go s.finish()
		return s.done
	}
	s.state.CompareAndSwap(int32(Running), int32(Stopping))
	s.stopOnce.Do(func() { close(s.stopCh) })
	return s.done
}

// Done returns a channel that is closed once the scheduler has stopped.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// CycleCount returns the number of cycles reported so far.
func (s *Scheduler) CycleCount() int {
	return int(s.cycles.Load())
}

// SkippedTicks returns the number of nominal ticks skipped because a cycle
// overran them.
func (s *Scheduler) SkippedTicks() int {
	return int(s.skipped.Load())
}

// Pool returns the pool the scheduler dispatches to.
func (s *Scheduler) Pool() workerpool.Pool {
	return s.pool
}

// run is the control loop. It owns all cycle state.
func (s *Scheduler) run(parent context.Context) {
	defer s.finish()
	defer func() {
		if parent.Err() != nil {
			s.state.CompareAndSwap(int32(Running), int32(Stopping))
			s.abort()
		}
	}()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	stopAbort := context.AfterFunc(s.abortCtx, cancel)
	defer stopAbort()

	nominal := s.cadence.first(time.Now().Add(s.config.InitialDelay))
	for cycle := 1; ; cycle++ {
		if nominal.IsZero() {
			s.logger.Warn("schedule has no further ticks")
			return
		}
		if !s.waitUntil(ctx, nominal) {
			return
		}

		started := time.Now()
		s.logger.Debug("cycle started", zap.Int("cycle", cycle), zap.Time("nominal", nominal))
		result := s.runCycle(ctx, cycle)
		s.cycles.Add(1)
		s.report(result)

		if s.config.MaxCycles > 0 && cycle >= s.config.MaxCycles {
			s.logger.Info("cycle limit reached", zap.Int("cycles", cycle))
			return
		}

		var skipped int
		nominal, skipped = s.cadence.next(nominal, started, time.Now())
		if skipped > 0 {
			s.skipped.Add(int64(skipped))
			if s.metrics != nil {
				s.metrics.SkippedTicks.WithLabelValues(s.config.Name).Add(float64(skipped))
			}
			s.logger.Warn("cycle overran its period, skipping ticks",
				zap.Int("cycle", cycle),
				zap.Int("skipped", skipped),
				zap.Duration("duration", result.Duration()))
		}
	}
}

// waitUntil sleeps until t. It returns false if the scheduler was stopped
// or its context ended first.
func (s *Scheduler) waitUntil(ctx context.Context, t time.Time) bool {
	if s.stopping(ctx) {
		return false
	}
	if d := time.Until(t); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-s.stopCh:
			return false
		case <-ctx.Done():
			return false
		}
	}
	return !s.stopping(ctx)
}

func (s *Scheduler) stopping(ctx context.Context) bool {
	select {
	case <-s.stopCh:
		return true
	default:
	}
	return ctx.Err() != nil
}

// runCycle produces and dispatches one batch.
func (s *Scheduler) runCycle(ctx context.Context, cycle int) task.CycleResult {
	started := time.Now()

	batch, err := s.produce(ctx, cycle)
	if err != nil {
		perr := &bferrors.ProducerError{Cycle: cycle, Cause: err}
		s.logger.Warn("batch producer failed", zap.Int("cycle", cycle), zap.Error(err))
		return task.CycleResult{
			Cycle:      cycle,
			StartedAt:  started,
			FinishedAt: time.Now(),
			Values:     map[string]any{},
			Err:        perr,
		}
	}

	batch.Cycle = cycle
	result, err := s.dispatcher.RunBatch(ctx, batch)
	if err != nil && bferrors.IsValidationError(err) {
		s.logger.Warn("batch producer returned an invalid batch", zap.Int("cycle", cycle), zap.Error(err))
		result.Err = &bferrors.ProducerError{Cycle: cycle, Cause: err}
	}
	result.StartedAt = started
	return result
}

// produce calls the producer, converting a panic into an error.
func (s *Scheduler) produce(ctx context.Context, cycle int) (batch task.Batch, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("batch producer panicked",
				zap.Int("cycle", cycle),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("producer panicked: %v", r)
		}
	}()
	return s.config.Producer(ctx, cycle)
}

// report records metrics and calls the observer, recovering its panics.
func (s *Scheduler) report(result task.CycleResult) {
	s.logger.Debug("cycle finished",
		zap.Int("cycle", result.Cycle),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)),
		zap.Duration("duration", result.Duration()),
		zap.NamedError("cycle_error", result.Err))

	if s.metrics != nil {
		name := s.config.Name
		s.metrics.CyclesCompleted.WithLabelValues(name).Inc()
		s.metrics.CycleDuration.WithLabelValues(name).Observe(result.Duration().Seconds())
		s.metrics.CycleTasks.WithLabelValues(name, "succeeded").Add(float64(len(result.Succeeded)))
		s.metrics.CycleTasks.WithLabelValues(name, "failed").Add(float64(len(result.Failed)))
		if bferrors.KindOf(result.Err) == bferrors.KindProducer {
			s.metrics.ProducerErrors.WithLabelValues(name).Inc()
		}
	}

	if s.config.Observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("cycle observer panicked",
				zap.Int("cycle", result.Cycle),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	s.config.Observer.OnCycleComplete(result)
}

// finish moves to Stopped, shuts down an owned pool and closes done.
func (s *Scheduler) finish() {
	s.closeOnce.Do(func() {
		if s.ownPool {
			if s.abortCtx.Err() != nil {
				<-s.pool.ShutdownNow()
			} else {
				<-s.pool.Shutdown()
			}
		}
		s.state.Store(int32(Stopped))
		s.abort()
		s.logger.Info("scheduler stopped", zap.Int64("cycles", s.cycles.Load()))
		close(s.done)
	})
}
