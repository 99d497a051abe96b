package report_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vnykmshr/batchflow/pkg/scheduling/report"
	"github.com/vnykmshr/batchflow/pkg/scheduling/scheduler"
	"github.com/vnykmshr/batchflow/pkg/scheduling/task"
)

func ExampleNewSummary() {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	summary := report.NewSummary(task.CycleResult{
		Cycle:      3,
		StartedAt:  start,
		FinishedAt: start.Add(250 * time.Millisecond),
		Succeeded:  []string{"fetch"},
		Failed:     []task.Failure{{TaskID: "upload", Err: errors.New("timeout")}},
	})

	data, _ := json.Marshal(summary)
	fmt.Println(string(data))

	// Output:
	// {"cycle":3,"started_at":"2024-05-01T12:00:00Z","finished_at":"2024-05-01T12:00:00.25Z","duration_ms":250,"succeeded":1,"failed":1,"failures":[{"task_id":"upload","kind":"unknown","error":"timeout"}]}
}

func ExampleMulti() {
	observer := report.Multi(
		scheduler.ObserverFunc(func(r task.CycleResult) { fmt.Println("audit cycle", r.Cycle) }),
		scheduler.ObserverFunc(func(r task.CycleResult) { fmt.Println("alert cycle", r.Cycle) }),
	)
	observer.OnCycleComplete(task.CycleResult{Cycle: 1})

	// Output:
	// audit cycle 1
	// alert cycle 1
}
