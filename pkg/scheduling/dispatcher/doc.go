// Package dispatcher runs a batch of tasks on a worker pool and collects a
// single consolidated result.
//
// RunBatch submits every task in batch order, honouring the pool's
// backpressure, then waits for all of them:
//
//	batch, _ := task.NewBatch(cycle, tasks...)
//	result, err := dispatcher.RunBatch(ctx, pool, batch)
//	for _, f := range result.Failed {
//		log.Printf("%s: %v", f.TaskID, f.Err)
//	}
//
// A failing, panicking or rejected task is recorded and never stops the
// rest of the batch. Cancelling ctx returns early with whatever has
// resolved; tasks already in the pool keep running.
package dispatcher
