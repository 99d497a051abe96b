// Package report provides cycle observers for the batch scheduler.
//
// Observers receive one task.CycleResult per cycle, in cycle order, on the
// scheduler's control goroutine. A slow observer delays the next cycle, so
// observers that talk to the network bound their own work.
//
// # Observers
//
//   - LogObserver writes one structured zap line per cycle.
//   - RedisPublisher publishes a JSON Summary of each cycle to a Redis
//     pub/sub channel.
//   - Multi fans a result out to several observers in order.
//
// # Quick Start
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	publisher, err := report.NewRedisPublisher(report.RedisConfig{
//		Client:  rdb,
//		Channel: "batchflow:cycles",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	s, err := scheduler.New(scheduler.Config{
//		Period:   time.Minute,
//		Producer: producer,
//		Observer: report.Multi(report.LogObserver(logger), publisher),
//	})
//
// Publishing is fire-and-forget: a failed PUBLISH is logged and counted,
// never retried, and never affects the schedule.
package report
