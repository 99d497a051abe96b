package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	bferrors "github.com/vnykmshr/batchflow/pkg/common/errors"
	"github.com/vnykmshr/batchflow/pkg/scheduling/task"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	failureColor = color.New(color.FgRed)
	warnColor    = color.New(color.FgYellow)
)

// summaryPrinter writes a short colored report for every cycle.
type summaryPrinter struct {
	out   io.Writer
	runID string
}

func (p summaryPrinter) OnCycleComplete(result task.CycleResult) {
	headerColor.Fprintf(p.out, "--- Cycle %d ", result.Cycle)
	fmt.Fprintf(p.out, "(%s, run %s) ---\n", result.Duration().Round(time.Millisecond), p.runID)

	if result.Err != nil {
		warnColor.Fprintf(p.out, "  cycle error [%s]: %v\n", bferrors.KindOf(result.Err), result.Err)
	}
	successColor.Fprintf(p.out, "  %d succeeded", len(result.Succeeded))
	fmt.Fprint(p.out, ", ")
	if len(result.Failed) == 0 {
		fmt.Fprintln(p.out, "0 failed")
		return
	}
	failureColor.Fprintf(p.out, "%d failed\n", len(result.Failed))
	for _, f := range result.Failed {
		fmt.Fprintf(p.out, "    %s [%s]: %v\n", f.TaskID, bferrors.KindOf(f.Err), f.Err)
	}
}
