/*
Package scheduling groups the batch scheduling packages.

  - task: the unit of work and the per-cycle result types
  - workerpool: bounded concurrent execution with backpressure
  - dispatcher: one batch in, one CycleResult out
  - scheduler: repeated cycles on a cadence
  - report: observers for cycle results

Worker Pool:

The pool bounds both concurrency and queued work. When it is saturated
the configured RejectionPolicy decides what happens to a new task:

	pool, _ := workerpool.New(workerpool.Config{
		CoreSize:        2,
		MaxSize:         4,
		QueueCapacity:   10,
		RejectionPolicy: workerpool.RunInCaller,
	})
	defer func() { <-pool.Shutdown() }()

	h, err := pool.Submit(ctx, task.New("resize", resize))
	outcome, err := h.Wait(ctx)

Dispatcher:

RunBatch submits a batch in order and returns once every task has an
outcome:

	result, err := dispatcher.RunBatch(ctx, pool, batch)
	for _, f := range result.Failed {
		log.Printf("%s: %v", f.TaskID, f.Err)
	}

Scheduler:

The scheduler never overlaps cycles. A cycle that overruns a fixed-rate
period skips the missed ticks instead of firing them in a burst:

	s, _ := scheduler.New(scheduler.Config{
		Mode:     scheduler.Cron,
		CronExpr: "@every 5m",
		Producer: producer,
	})
	s.Start(ctx)

All components are safe for concurrent use and honour context
cancellation.
*/
package scheduling
