// Package metrics provides Prometheus instrumentation for batchflow components.
//
// Worker pools report their size, active workers, queue depth, blocked
// submitters and per-task counters and latencies. Schedulers report
// completed cycles, cycle duration, task outcomes, skipped ticks and
// producer failures.
//
// # Quick Start
//
// Enable metrics through the metrics-aware constructors:
//
//	pool, err := workerpool.NewWithMetrics(workerpool.DefaultConfig(), "etl", metrics.DefaultConfig())
//
// or by setting Metrics in a scheduler.Config. Then expose them over HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":9090", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation:
//
//	registry := prometheus.NewRegistry()
//	config := metrics.Config{
//		Enabled:  true,
//		Registry: registry,
//	}
//
// For caches one Registry per registerer and namespace, so several
// components can share a custom registry without double registration.
//
// # Metric Names
//
// With the default namespace:
//
//	batchflow_workerpool_size{pool_name}
//	batchflow_workerpool_active_workers{pool_name}
//	batchflow_workerpool_queued_tasks{pool_name}
//	batchflow_workerpool_blocked_submits{pool_name}
//	batchflow_workerpool_tasks_submitted_total{pool_name}
//	batchflow_workerpool_tasks_completed_total{pool_name}
//	batchflow_workerpool_tasks_failed_total{pool_name}
//	batchflow_workerpool_tasks_rejected_total{pool_name,policy}
//	batchflow_workerpool_caller_runs_total{pool_name}
//	batchflow_workerpool_task_duration_seconds{pool_name}
//	batchflow_workerpool_task_queue_wait_seconds{pool_name}
//	batchflow_scheduler_cycles_total{scheduler_name}
//	batchflow_scheduler_cycle_duration_seconds{scheduler_name}
//	batchflow_scheduler_cycle_tasks_total{scheduler_name,outcome}
//	batchflow_scheduler_skipped_ticks_total{scheduler_name}
//	batchflow_scheduler_producer_errors_total{scheduler_name}
package metrics
