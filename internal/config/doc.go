// Package config loads the batchflow CLI configuration.
//
// Values are resolved in this order, highest first:
//
//  1. command-line flags registered with RegisterFlags
//  2. BATCHFLOW_* environment variables (pool.core_size is BATCHFLOW_POOL_CORE_SIZE)
//  3. the YAML file passed to Load
//  4. the `default` struct tags
//
// # Configuration Structure
//
//	Config
//	├── Pool      - worker pool sizing and rejection policy
//	├── Schedule  - cadence, cron expression and cycle limit
//	├── Metrics   - Prometheus namespace and /metrics listener
//	├── Redis     - optional pub/sub channel for cycle summaries
//	├── Demo      - synthetic workload used by "batchflow run"
//	└── Log       - zap level and encoding
//
// # Example File
//
//	pool:
//	  core_size: 4
//	  max_size: 8
//	  queue_capacity: 50
//	  rejection_policy: run-in-caller
//	schedule:
//	  mode: cron
//	  cron: "*/10 * * * * *"
//	  timezone: UTC
//	redis:
//	  addr: localhost:6379
//	  channel: batchflow:cycles
//
// Use Config.PoolConfig and Config.SchedulerConfig to turn the loaded
// values into library configuration.
package config
