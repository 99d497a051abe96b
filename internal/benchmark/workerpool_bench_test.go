// Package benchmark holds cross-package throughput benchmarks.
package benchmark

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/vnykmshr/batchflow/pkg/scheduling/dispatcher"
	"github.com/vnykmshr/batchflow/pkg/scheduling/task"
	"github.com/vnykmshr/batchflow/pkg/scheduling/workerpool"
)

var noop = task.New("noop", func(context.Context) (any, error) { return nil, nil })

func newPool(b *testing.B, config workerpool.Config) workerpool.Pool {
	b.Helper()
	pool, err := workerpool.New(config)
	if err != nil {
		b.Fatalf("failed to create pool: %v", err)
	}
	b.Cleanup(func() { <-pool.Shutdown() })
	return pool
}

// BenchmarkWorkerPoolSubmit measures submission with a blocking policy.
func BenchmarkWorkerPoolSubmit(b *testing.B) {
	for _, workers := range []int{2, 4, 8} {
		b.Run(workerLabel(workers), func(b *testing.B) {
			pool := newPool(b, workerpool.FixedConfig(workers, 1000))
			ctx := context.Background()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = pool.Submit(ctx, noop)
			}
		})
	}
}

// BenchmarkWorkerPoolThroughput measures submit-to-outcome latency.
func BenchmarkWorkerPoolThroughput(b *testing.B) {
	pool := newPool(b, workerpool.FixedConfig(4, 100))
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h, err := pool.Submit(ctx, noop)
		if err != nil {
			b.Fatal(err)
		}
		_, _ = h.Wait(ctx)
	}
}

// BenchmarkWorkerPoolContention measures concurrent submitters.
func BenchmarkWorkerPoolContention(b *testing.B) {
	pool := newPool(b, workerpool.FixedConfig(8, 500))
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = pool.Submit(ctx, noop)
		}
	})
}

// BenchmarkWorkerPoolPolicies measures a saturated pool under each policy.
func BenchmarkWorkerPoolPolicies(b *testing.B) {
	policies := []workerpool.RejectionPolicy{
		workerpool.Block,
		workerpool.DropNewest,
		workerpool.DropOldest,
		workerpool.RunInCaller,
		workerpool.Fail,
	}
	work := task.New("work", func(context.Context) (any, error) {
		time.Sleep(time.Microsecond)
		return nil, nil
	})

	for _, policy := range policies {
		b.Run(policy.String(), func(b *testing.B) {
			pool := newPool(b, workerpool.Config{
				CoreSize:        2,
				MaxSize:         4,
				QueueCapacity:   8,
				KeepAlive:       time.Second,
				RejectionPolicy: policy,
			})
			ctx := context.Background()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = pool.Submit(ctx, work)
			}
		})
	}
}

// BenchmarkRunBatch measures a whole batch through the dispatcher.
func BenchmarkRunBatch(b *testing.B) {
	for _, size := range []int{10, 100, 1000} {
		b.Run(sizeLabel(size), func(b *testing.B) {
			pool := newPool(b, workerpool.FixedConfig(8, 64))
			tasks := make([]task.Task, size)
			for i := range tasks {
				tasks[i] = task.New("t"+strconv.Itoa(i), noop.Action)
			}
			batch := task.Batch{Tasks: tasks}
			ctx := context.Background()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				result, err := dispatcher.RunBatch(ctx, pool, batch)
				if err != nil || result.Total() != size {
					b.Fatalf("batch incomplete: %d outcomes, %v", result.Total(), err)
				}
			}
		})
	}
}

// BenchmarkWorkerPoolShutdown measures graceful shutdown with queued work.
func BenchmarkWorkerPoolShutdown(b *testing.B) {
	ctx := context.Background()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		pool, err := workerpool.New(workerpool.FixedConfig(4, 100))
		if err != nil {
			b.Fatalf("failed to create pool: %v", err)
		}
		for j := 0; j < 10; j++ {
			_, _ = pool.Submit(ctx, noop)
		}
		<-pool.Shutdown()
	}
}

func workerLabel(workers int) string {
	return strconv.Itoa(workers) + "workers"
}

func sizeLabel(size int) string {
	return strconv.Itoa(size) + "tasks"
}
