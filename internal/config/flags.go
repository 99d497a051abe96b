package config

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// RegisterFlags adds a flag for every configuration key to fs. Flag names
// are the keys with "_" replaced by "-", e.g. --pool.core-size. Flag
// defaults match Default so that an unset flag never masks the file or
// the environment with a different value.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()

	fs.Int(flagName("pool.core_size"), d.Pool.CoreSize, "workers kept alive for the life of the pool")
	fs.Int(flagName("pool.max_size"), d.Pool.MaxSize, "upper bound on concurrent workers")
	fs.Int(flagName("pool.queue_capacity"), d.Pool.QueueCapacity, "tasks that may wait for a worker (0 for direct hand-off)")
	fs.Duration(flagName("pool.keep_alive"), d.Pool.KeepAlive, "idle time before a non-core worker retires")
	fs.String(flagName("pool.rejection_policy"), d.Pool.RejectionPolicy, "block, drop-newest, drop-oldest, run-in-caller or fail")
	fs.Duration(flagName("pool.block_timeout"), d.Pool.BlockTimeout, "maximum wait for a blocked submit (0 waits indefinitely)")
	fs.Duration(flagName("pool.task_timeout"), d.Pool.TaskTimeout, "per-task execution timeout (0 disables)")

	fs.String(flagName("schedule.name"), d.Schedule.Name, "scheduler name used in logs and metrics")
	fs.String(flagName("schedule.mode"), d.Schedule.Mode, "fixed-rate, fixed-delay or cron")
	fs.Duration(flagName("schedule.period"), d.Schedule.Period, "cycle period for fixed-rate and fixed-delay")
	fs.String(flagName("schedule.cron"), d.Schedule.Cron, "cron expression for cron mode")
	fs.String(flagName("schedule.timezone"), d.Schedule.Timezone, "time zone for the cron expression")
	fs.Duration(flagName("schedule.initial_delay"), d.Schedule.InitialDelay, "delay before the first cycle")
	fs.Int(flagName("schedule.max_cycles"), d.Schedule.MaxCycles, "stop after this many cycles (0 runs until interrupted)")

	fs.Bool(flagName("metrics.enabled"), d.Metrics.Enabled, "export Prometheus metrics")
	fs.String(flagName("metrics.addr"), d.Metrics.Addr, "listen address for /metrics (empty disables the listener)")
	fs.String(flagName("metrics.namespace"), d.Metrics.Namespace, "Prometheus metric namespace")

	fs.String(flagName("redis.addr"), d.Redis.Addr, "Redis address for cycle summaries (empty disables publishing)")
	fs.String(flagName("redis.password"), d.Redis.Password, "Redis password")
	fs.Int(flagName("redis.db"), d.Redis.DB, "Redis database")
	fs.String(flagName("redis.channel"), d.Redis.Channel, "pub/sub channel for cycle summaries")
	fs.Duration(flagName("redis.timeout"), d.Redis.Timeout, "timeout for each Redis operation")

	fs.Int(flagName("demo.tasks"), d.Demo.Tasks, "tasks per batch")
	fs.Duration(flagName("demo.min_duration"), d.Demo.MinDuration, "shortest simulated task")
	fs.Duration(flagName("demo.max_duration"), d.Demo.MaxDuration, "longest simulated task")
	fs.Float64(flagName("demo.failure_rate"), d.Demo.FailureRate, "probability that a simulated attempt fails")
	fs.Int(flagName("demo.retries"), d.Demo.Retries, "retries per simulated task")

	fs.String(flagName("log.level"), d.Log.Level, "debug, info, warn or error")
	fs.String(flagName("log.format"), d.Log.Format, "console or json")
}

// BindFlags binds the flags registered by RegisterFlags to v.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, key := range keys {
		flag := fs.Lookup(flagName(key))
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return err
		}
	}
	return nil
}

func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}
