/*
Package batchflow provides a bounded batch scheduler with backpressure.

A periodic trigger fans a bounded batch of tasks out onto a worker pool,
waits for the batch to drain, reports one consolidated result per cycle
and repeats.

Task Scheduling (pkg/scheduling):
  - task: Task, Batch and CycleResult, plus a backoff retry wrapper
  - workerpool: Bounded pool with core/max workers and rejection policies
  - dispatcher: Runs one batch on a pool and collects every outcome
  - scheduler: Fixed-rate, fixed-delay and cron cycles
  - report: Log, Redis pub/sub and fan-out cycle observers

Supporting packages:
  - common/errors: Error kinds and typed errors
  - metrics: Prometheus metrics for pools and schedulers

Example usage:

	import (
		"github.com/vnykmshr/batchflow/pkg/scheduling/scheduler"
		"github.com/vnykmshr/batchflow/pkg/scheduling/workerpool"
	)

	s, _ := scheduler.New(scheduler.Config{
		Mode:       scheduler.FixedRate,
		Period:     5 * time.Second,
		PoolConfig: workerpool.FixedConfig(5, 5), // 5 workers, queue 5
		Producer:   producer,
		Observer:   observer,
	})
	s.Start(ctx)
	defer func() { <-s.Stop(true) }()
*/
package batchflow
