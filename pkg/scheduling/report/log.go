package report

import (
	"go.uber.org/zap"

	"github.com/vnykmshr/batchflow/pkg/scheduling/scheduler"
	"github.com/vnykmshr/batchflow/pkg/scheduling/task"
)

// LogObserver returns an observer that logs one line per cycle: info for
// clean cycles, warn when tasks failed or the cycle itself failed.
func LogObserver(logger *zap.Logger) scheduler.Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return scheduler.ObserverFunc(func(result task.CycleResult) {
		fields := []zap.Field{
			zap.Int("cycle", result.Cycle),
			zap.Int("succeeded", len(result.Succeeded)),
			zap.Int("failed", len(result.Failed)),
			zap.Duration("duration", result.Duration()),
		}
		if len(result.Failed) > 0 {
			fields = append(fields, zap.Strings("failed_tasks", result.FailedIDs()))
		}

		switch {
		case result.Err != nil:
			logger.Warn("cycle failed", append(fields, zap.Error(result.Err))...)
		case len(result.Failed) > 0:
			logger.Warn("cycle completed with failures", append(fields, zap.Error(result.Errors()))...)
		default:
			logger.Info("cycle completed", fields...)
		}
	})
}
