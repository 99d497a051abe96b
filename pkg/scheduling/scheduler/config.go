package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	bferrors "github.com/vnykmshr/batchflow/pkg/common/errors"
	"github.com/vnykmshr/batchflow/pkg/common/validation"
	"github.com/vnykmshr/batchflow/pkg/metrics"
	"github.com/vnykmshr/batchflow/pkg/scheduling/task"
	"github.com/vnykmshr/batchflow/pkg/scheduling/workerpool"
)

// Mode selects how the next cycle's start time is computed.
type Mode int

const (
	// FixedRate starts cycles at a fixed origin plus N periods. A cycle
	// that overruns is followed immediately by the next one, and the
	// nominal ticks it missed are skipped.
	FixedRate Mode = iota

	// FixedDelay starts each cycle Period after the previous one finished.
	FixedDelay

	// Cron takes nominal start times from CronExpr and skips missed ticks
	// like FixedRate.
	Cron
)

var modeNames = map[Mode]string{
	FixedRate:  "fixed-rate",
	FixedDelay: "fixed-delay",
	Cron:       "cron",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses the names produced by Mode.String.
func ParseMode(s string) (Mode, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for m, name := range modeNames {
		if name == norm {
			return m, nil
		}
	}
	return 0, bferrors.NewValidationError("scheduler", "Mode", s, "unknown mode").
		WithHint("use fixed-rate, fixed-delay or cron")
}

// Producer builds the batch for a cycle. Cycles are numbered from 1; the
// scheduler sets the batch's Cycle field. A producer may keep state across
// calls, for example to resubmit the failures reported to its observer.
type Producer func(ctx context.Context, cycle int) (task.Batch, error)

// Tasks adapts a function returning a task list into a Producer.
func Tasks(fn func(ctx context.Context, cycle int) ([]task.Task, error)) Producer {
	return func(ctx context.Context, cycle int) (task.Batch, error) {
		tasks, err := fn(ctx, cycle)
		if err != nil {
			return task.Batch{}, err
		}
		return task.Batch{Cycle: cycle, Tasks: tasks}, nil
	}
}

// Observer receives the result of every cycle.
type Observer interface {
	OnCycleComplete(result task.CycleResult)
}

// ObserverFunc adapts a function into an Observer.
type ObserverFunc func(result task.CycleResult)

// OnCycleComplete calls f(result).
func (f ObserverFunc) OnCycleComplete(result task.CycleResult) {
	f(result)
}

// Config holds scheduler configuration.
type Config struct {
	// Name labels log lines and metrics.
	Name string

	Mode Mode

	// Period is the cycle period for FixedRate and FixedDelay.
	Period time.Duration

	// CronExpr is the schedule for Cron mode. It accepts an optional
	// seconds field and descriptors such as "@every 5s" or "@hourly".
	CronExpr string

	// Location is the time zone for CronExpr. Defaults to time.Local.
	Location *time.Location

	// InitialDelay postpones the first cycle.
	InitialDelay time.Duration

	// MaxCycles stops the scheduler after that many cycles. Zero means no limit.
	MaxCycles int

	// Producer builds each cycle's batch. Required.
	Producer Producer

	// Observer is called synchronously on the control goroutine after
	// every cycle. It should return quickly: under FixedDelay it delays the
	// next cycle and under FixedRate it may cause skipped ticks.
	Observer Observer

	// Pool runs the batches. If nil the scheduler creates a pool from
	// PoolConfig and shuts it down when it stops.
	Pool workerpool.Pool

	// PoolConfig is used when Pool is nil. A zero value means a fixed pool
	// of 4 workers with a queue of 100.
	PoolConfig workerpool.Config

	// Logger receives cycle logs. Nil disables logging.
	Logger *zap.Logger

	// Metrics enables Prometheus metrics for the scheduler and its own pool.
	Metrics metrics.Config
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	const module = "scheduler"
	if c.Producer == nil {
		return bferrors.NewValidationError(module, "Producer", nil, "cannot be nil")
	}
	if err := validation.First(
		validation.ValidateNonNegativeDuration(module, "InitialDelay", c.InitialDelay),
		validation.ValidateNonNegative(module, "MaxCycles", c.MaxCycles),
	); err != nil {
		return err
	}

	switch c.Mode {
	case FixedRate, FixedDelay:
		if err := validation.ValidatePositiveDuration(module, "Period", c.Period); err != nil {
			return err
		}
	case Cron:
		if err := ValidateCronExpression(c.CronExpr); err != nil {
			return err
		}
	default:
		return bferrors.NewValidationError(module, "Mode", int(c.Mode), "unknown mode")
	}

	if c.Pool == nil && c.PoolConfig.MaxSize != 0 {
		if err := c.PoolConfig.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// State is the lifecycle state of a Scheduler.
type State int32

const (
	Idle State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}
