package report

import (
	"time"

	bferrors "github.com/vnykmshr/batchflow/pkg/common/errors"
	"github.com/vnykmshr/batchflow/pkg/scheduling/task"
)

// Summary is the wire form of a cycle result.
type Summary struct {
	Scheduler  string          `json:"scheduler,omitempty"`
	RunID      string          `json:"run_id,omitempty"`
	Cycle      int             `json:"cycle"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	DurationMS int64           `json:"duration_ms"`
	Succeeded  int             `json:"succeeded"`
	Failed     int             `json:"failed"`
	Failures   []FailureDetail `json:"failures,omitempty"`
	Error      string          `json:"error,omitempty"`
	ErrorKind  string          `json:"error_kind,omitempty"`
}

// FailureDetail describes one failed task.
type FailureDetail struct {
	TaskID string `json:"task_id"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

// NewSummary condenses result. Values are omitted: they are arbitrary and
// may not be serializable.
func NewSummary(result task.CycleResult) Summary {
	s := Summary{
		Cycle:      result.Cycle,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		DurationMS: result.Duration().Milliseconds(),
		Succeeded:  len(result.Succeeded),
		Failed:     len(result.Failed),
	}
	for _, f := range result.Failed {
		s.Failures = append(s.Failures, FailureDetail{
			TaskID: f.TaskID,
			Kind:   bferrors.KindOf(f.Err).String(),
			Error:  f.Err.Error(),
		})
	}
	if result.Err != nil {
		s.Error = result.Err.Error()
		s.ErrorKind = bferrors.KindOf(result.Err).String()
	}
	return s
}
