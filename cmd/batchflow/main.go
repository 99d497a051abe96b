// Command batchflow runs a demo batch schedule on a bounded worker pool.
//
// Usage:
//
//	batchflow run --schedule.period=2s --pool.max-size=8 --demo.tasks=20
//	batchflow run --config batchflow.yaml
//	batchflow cron "0 */15 9-17 * * MON-FRI" --next 5
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
