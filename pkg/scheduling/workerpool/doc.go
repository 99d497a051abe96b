/*
Package workerpool provides a bounded worker pool with explicit backpressure.

A pool runs tasks on at most MaxSize worker goroutines and holds at most
QueueCapacity tasks waiting for a worker. CoreSize workers start with the
pool and stay for its lifetime; extra workers start only when the queue is
full and retire after KeepAlive of idleness. When every worker is busy and
the queue is full, the RejectionPolicy decides what Submit does.

Basic usage:

	pool, err := workerpool.New(workerpool.Config{
		CoreSize:        2,
		MaxSize:         4,
		QueueCapacity:   100,
		KeepAlive:       time.Minute,
		RejectionPolicy: workerpool.Block,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Shutdown()

	h, err := pool.Submit(ctx, task.New("resize-42", func(ctx context.Context) (any, error) {
		return resize(ctx, 42)
	}))
	if err != nil {
		log.Printf("not admitted: %v", err)
		return
	}

	outcome, _ := h.Wait(ctx)
	if outcome.Err != nil {
		log.Printf("task failed: %v", outcome.Err)
	}

Admission:

Submit places a task in the first of these that has room:

 1. an idle worker or the queue
 2. a new worker, while fewer than MaxSize are running
 3. the rejection policy

QueueCapacity 0 means direct hand-off: a task is admitted only when a
worker can take it.

Rejection Policies:

  - Block waits for room until the submit context ends or BlockTimeout
    elapses, then returns an error wrapping ErrTimeout or ErrCancelled.
    Blocked submitters are admitted in arrival order.
  - DropNewest returns a handle already resolved with an ErrRejected error.
  - DropOldest evicts the oldest queued task and admits the new one. With
    no queue it behaves like DropNewest.
  - RunInCaller runs the task on the submitting goroutine before Submit
    returns. Such runs do not count toward MaxSize.
  - Fail returns an ErrRejected error and no handle.

Contexts:

The submit context bounds admission only. Each task runs with its own
context, which keeps the submit context's values and ends when the handle
is cancelled, TaskTimeout elapses or the pool is shut down with
ShutdownNow.

Outcomes:

A Handle resolves exactly once with an Outcome. Action errors and panics
are wrapped in *errors.TaskError; a panicking task never kills its worker.
AwaitAll gathers a set of handles into a task.CycleResult, keeping handle
order irrespective of completion order.

Shutdown:

	// Graceful: finish running and queued tasks, then stop workers.
	<-pool.Shutdown()

	// Immediate: cancel running tasks, discard queued ones.
	<-pool.ShutdownNow()

	// Graceful with escalation.
	<-pool.ShutdownWithTimeout(30 * time.Second)

After any shutdown Submit fails with an error wrapping both ErrRejected
and ErrClosed, and blocked submitters are released with the same error.
All shutdown methods are idempotent and return the same channel.

Metrics:

NewWithMetrics wraps a pool with Prometheus collectors from the metrics
package, labelled by pool name.

All pool operations are safe for concurrent use from multiple goroutines.
*/
package workerpool
