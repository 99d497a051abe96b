package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	bferrors "github.com/vnykmshr/batchflow/pkg/common/errors"
	"github.com/vnykmshr/batchflow/pkg/common/validation"
	"github.com/vnykmshr/batchflow/pkg/metrics"
	"github.com/vnykmshr/batchflow/pkg/scheduling/scheduler"
	"github.com/vnykmshr/batchflow/pkg/scheduling/task"
	"github.com/vnykmshr/batchflow/pkg/scheduling/workerpool"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "BATCHFLOW"

// Config is the full CLI configuration.
type Config struct {
	Pool     Pool     `mapstructure:"pool"`
	Schedule Schedule `mapstructure:"schedule"`
	Metrics  Metrics  `mapstructure:"metrics"`
	Redis    Redis    `mapstructure:"redis"`
	Demo     Demo     `mapstructure:"demo"`
	Log      Log      `mapstructure:"log"`
}

// Pool configures the worker pool.
type Pool struct {
	CoreSize        int           `mapstructure:"core_size" default:"4"`
	MaxSize         int           `mapstructure:"max_size" default:"4"`
	QueueCapacity   int           `mapstructure:"queue_capacity" default:"100"`
	KeepAlive       time.Duration `mapstructure:"keep_alive" default:"60s"`
	RejectionPolicy string        `mapstructure:"rejection_policy" default:"block"`
	BlockTimeout    time.Duration `mapstructure:"block_timeout"`
	TaskTimeout     time.Duration `mapstructure:"task_timeout"`
}

// Schedule configures the scheduler.
type Schedule struct {
	Name         string        `mapstructure:"name" default:"batchflow"`
	Mode         string        `mapstructure:"mode" default:"fixed-rate"`
	Period       time.Duration `mapstructure:"period" default:"5s"`
	Cron         string        `mapstructure:"cron"`
	Timezone     string        `mapstructure:"timezone" default:"Local"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxCycles    int           `mapstructure:"max_cycles"`
}

// Metrics configures Prometheus export.
type Metrics struct {
	Enabled   bool   `mapstructure:"enabled" default:"true"`
	Addr      string `mapstructure:"addr" default:":9090"`
	Namespace string `mapstructure:"namespace" default:"batchflow"`
}

// Redis configures the optional cycle summary publisher. Publishing is
// disabled when Addr is empty.
type Redis struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Channel  string        `mapstructure:"channel" default:"batchflow:cycles"`
	Timeout  time.Duration `mapstructure:"timeout" default:"500ms"`
}

// Demo shapes the synthetic batch run by the CLI.
type Demo struct {
	Tasks       int           `mapstructure:"tasks" default:"10"`
	MinDuration time.Duration `mapstructure:"min_duration" default:"50ms"`
	MaxDuration time.Duration `mapstructure:"max_duration" default:"500ms"`
	FailureRate float64       `mapstructure:"failure_rate" default:"0.1"`
	Retries     int           `mapstructure:"retries" default:"2"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `mapstructure:"level" default:"info"`
	Format string `mapstructure:"format" default:"console"`
}

// keys lists every configuration key so that environment variables are
// honoured even when the file does not mention them.
var keys = []string{
	"pool.core_size", "pool.max_size", "pool.queue_capacity", "pool.keep_alive",
	"pool.rejection_policy", "pool.block_timeout", "pool.task_timeout",
	"schedule.name", "schedule.mode", "schedule.period", "schedule.cron",
	"schedule.timezone", "schedule.initial_delay", "schedule.max_cycles",
	"metrics.enabled", "metrics.addr", "metrics.namespace",
	"redis.addr", "redis.password", "redis.db", "redis.channel", "redis.timeout",
	"demo.tasks", "demo.min_duration", "demo.max_duration", "demo.failure_rate", "demo.retries",
	"log.level", "log.format",
}

// Default returns the configuration defined by the default tags.
func Default() Config {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		panic(fmt.Sprintf("config: invalid default tag: %v", err))
	}
	return cfg
}

// NewViper returns a viper instance reading BATCHFLOW_* variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
	return v
}

// Load reads path, if not empty, into v and decodes the result over the
// defaults. The returned configuration has been validated.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields that the library configs cannot check
// themselves, then the derived library configs.
func (c Config) Validate() error {
	const module = "config"
	if _, err := c.Location(); err != nil {
		return err
	}
	if err := validation.First(
		validation.ValidateNonNegative(module, "Demo.Tasks", c.Demo.Tasks),
		validation.ValidateNonNegative(module, "Demo.Retries", c.Demo.Retries),
		validation.ValidateNonNegativeDuration(module, "Demo.MinDuration", c.Demo.MinDuration),
	); err != nil {
		return err
	}
	if c.Demo.MaxDuration < c.Demo.MinDuration {
		return bferrors.NewValidationError(module, "Demo.MaxDuration", c.Demo.MaxDuration, "below Demo.MinDuration")
	}
	if c.Demo.FailureRate < 0 || c.Demo.FailureRate > 1 {
		return bferrors.NewValidationError(module, "Demo.FailureRate", c.Demo.FailureRate, "must be between 0 and 1")
	}
	if c.Redis.Addr != "" {
		if err := validation.ValidateNotEmpty(module, "Redis.Channel", c.Redis.Channel); err != nil {
			return err
		}
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return bferrors.NewValidationError(module, "Log.Level", c.Log.Level, "unknown level")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return bferrors.NewValidationError(module, "Log.Format", c.Log.Format, "unknown format").
			WithHint("use console or json")
	}

	pool, err := c.PoolConfig(nil)
	if err != nil {
		return err
	}
	if err := pool.Validate(); err != nil {
		return err
	}
	sched, err := c.SchedulerConfig(nopProducer, nil, nil)
	if err != nil {
		return err
	}
	return sched.Validate()
}

// Location resolves Schedule.Timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, bferrors.NewValidationError("config", "Schedule.Timezone", c.Schedule.Timezone, err.Error())
	}
	return loc, nil
}

// PoolConfig converts the pool section.
func (c Config) PoolConfig(logger *zap.Logger) (workerpool.Config, error) {
	policy, err := workerpool.ParseRejectionPolicy(c.Pool.RejectionPolicy)
	if err != nil {
		return workerpool.Config{}, err
	}
	return workerpool.Config{
		Name:            c.Schedule.Name,
		CoreSize:        c.Pool.CoreSize,
		MaxSize:         c.Pool.MaxSize,
		QueueCapacity:   c.Pool.QueueCapacity,
		KeepAlive:       c.Pool.KeepAlive,
		RejectionPolicy: policy,
		BlockTimeout:    c.Pool.BlockTimeout,
		TaskTimeout:     c.Pool.TaskTimeout,
		Logger:          logger,
	}, nil
}

// MetricsConfig converts the metrics section.
func (c Config) MetricsConfig() metrics.Config {
	cfg := metrics.DefaultConfig()
	cfg.Enabled = c.Metrics.Enabled
	cfg.Namespace = c.Metrics.Namespace
	return cfg
}

// SchedulerConfig converts the schedule and pool sections. The scheduler
// owns the pool it builds from them.
func (c Config) SchedulerConfig(producer scheduler.Producer, observer scheduler.Observer, logger *zap.Logger) (scheduler.Config, error) {
	mode, err := scheduler.ParseMode(c.Schedule.Mode)
	if err != nil {
		return scheduler.Config{}, err
	}
	loc, err := c.Location()
	if err != nil {
		return scheduler.Config{}, err
	}
	pool, err := c.PoolConfig(logger)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Name:         c.Schedule.Name,
		Mode:         mode,
		Period:       c.Schedule.Period,
		CronExpr:     c.Schedule.Cron,
		Location:     loc,
		InitialDelay: c.Schedule.InitialDelay,
		MaxCycles:    c.Schedule.MaxCycles,
		Producer:     producer,
		Observer:     observer,
		PoolConfig:   pool,
		Logger:       logger,
		Metrics:      c.MetricsConfig(),
	}, nil
}

// RedisOptions returns client options for the redis section, or nil when
// publishing is disabled.
func (c Config) RedisOptions() *redis.Options {
	if c.Redis.Addr == "" {
		return nil
	}
	return &redis.Options{
		Addr:         c.Redis.Addr,
		Password:     c.Redis.Password,
		DB:           c.Redis.DB,
		DialTimeout:  c.Redis.Timeout,
		ReadTimeout:  c.Redis.Timeout,
		WriteTimeout: c.Redis.Timeout,
	}
}

// NewLogger builds the zap logger described by the log section.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	if c.Log.Format == "json" {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func nopProducer(_ context.Context, _ int) (task.Batch, error) {
	return task.Batch{}, nil
}
