/*
Package scheduler drives repeated batch cycles on a worker pool.

Each cycle calls the Producer for a batch, runs it through the dispatcher
and reports the consolidated task.CycleResult to the Observer. Cycles never
run concurrently.

Basic Usage:

	s, err := scheduler.New(scheduler.Config{
		Name:   "reports",
		Mode:   scheduler.FixedRate,
		Period: 5 * time.Second,
		Producer: scheduler.Tasks(func(ctx context.Context, cycle int) ([]task.Task, error) {
			return buildReportTasks(cycle), nil
		}),
		Observer: scheduler.ObserverFunc(func(r task.CycleResult) {
			log.Printf("cycle %d: %d ok, %d failed", r.Cycle, len(r.Succeeded), len(r.Failed))
		}),
	})
	if err != nil {
		log.Fatal(err)
	}
	if err := s.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer func() { <-s.Stop(true) }()

Modes:

  - FixedRate: nominal starts are the first start plus N periods. If a cycle
    overruns, the next one starts as soon as it finishes and the nominal
    ticks that passed meanwhile are skipped rather than run back to back.
  - FixedDelay: each cycle starts Period after the previous completion.
  - Cron: nominal starts come from CronExpr, evaluated in Location, with the
    same skip rule as FixedRate. Five-field, six-field (with seconds) and
    descriptor forms such as "@every 10s" are accepted.

InitialDelay postpones the first cycle and MaxCycles stops the scheduler
after a number of cycles.

Lifecycle:

A Scheduler moves from Idle to Running on Start, to Stopping on Stop and to
Stopped once its control goroutine exits:

	<-s.Stop(true)  // let the current cycle finish
	<-s.Stop(false) // cancel the current cycle's context

An interrupted cycle is still reported, with its unresolved tasks failed as
cancelled. Cancelling the context passed to Start behaves like Stop(false).

When Config.Pool is nil the scheduler creates a pool from Config.PoolConfig
and shuts it down on stop, gracefully after Stop(true) and immediately
after Stop(false).

Failures:

Task failures are recorded per task and never stop the schedule; the
scheduler does not retry. A Producer that returns an error or panics, or
returns an invalid batch, yields a CycleResult whose Err is an
*errors.ProducerError, and the schedule continues. Observer panics are
recovered and logged.
*/
package scheduler
