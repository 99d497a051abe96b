package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	bferrors "github.com/vnykmshr/batchflow/pkg/common/errors"
	"github.com/vnykmshr/batchflow/pkg/scheduling/task"
)

func TestSummaryPrinter(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	var buf bytes.Buffer
	start := time.Now()
	summaryPrinter{out: &buf, runID: "run-1"}.OnCycleComplete(task.CycleResult{
		Cycle:      2,
		StartedAt:  start,
		FinishedAt: start.Add(1200 * time.Millisecond),
		Succeeded:  []string{"task-1"},
		Failed: []task.Failure{
			{TaskID: "task-2", Err: &bferrors.TaskError{TaskID: "task-2", Cause: errors.New("boom")}},
		},
	})

	out := buf.String()
	for _, want := range []string{
		"--- Cycle 2 (1.2s, run run-1) ---",
		"1 succeeded, 1 failed",
		`task-2 [task]: task "task-2" failed: boom`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
