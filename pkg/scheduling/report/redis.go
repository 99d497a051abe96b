package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	bferrors "github.com/vnykmshr/batchflow/pkg/common/errors"
	"github.com/vnykmshr/batchflow/pkg/common/validation"
	"github.com/vnykmshr/batchflow/pkg/scheduling/task"
)

// Publisher is the subset of a Redis client used by RedisPublisher.
// *redis.Client, *redis.ClusterClient and redis.UniversalClient satisfy it.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisConfig configures a RedisPublisher.
type RedisConfig struct {
	// Client publishes the summaries.
	Client Publisher

	// Channel is the pub/sub channel name.
	Channel string

	// Scheduler and RunID are copied into every summary.
	Scheduler string
	RunID     string

	// Timeout bounds each PUBLISH (defaults to 500ms).
	Timeout time.Duration

	// Logger receives publish failures.
	Logger *zap.Logger
}

// RedisPublisher publishes a JSON Summary of every cycle to a Redis
// pub/sub channel.
type RedisPublisher struct {
	config    RedisConfig
	logger    *zap.Logger
	published atomic.Int64
	failed    atomic.Int64
}

// NewRedisPublisher validates config and creates a publisher.
func NewRedisPublisher(config RedisConfig) (*RedisPublisher, error) {
	const module = "report"
	if err := validation.First(
		validation.ValidateNotNil(module, "Client", config.Client),
		validation.ValidateNotEmpty(module, "Channel", config.Channel),
		validation.ValidateNonNegativeDuration(module, "Timeout", config.Timeout),
	); err != nil {
		return nil, err
	}
	if config.Timeout == 0 {
		config.Timeout = 500 * time.Millisecond
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{
		config: config,
		logger: logger.With(zap.String("channel", config.Channel)),
	}, nil
}

// OnCycleComplete publishes result, logging any failure.
func (p *RedisPublisher) OnCycleComplete(result task.CycleResult) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.Timeout)
	defer cancel()

	if err := p.Publish(ctx, result); err != nil {
		p.logger.Warn("failed to publish cycle summary", zap.Int("cycle", result.Cycle), zap.Error(err))
	}
}

// Publish encodes result and publishes it within ctx.
func (p *RedisPublisher) Publish(ctx context.Context, result task.CycleResult) error {
	summary := NewSummary(result)
	summary.Scheduler = p.config.Scheduler
	summary.RunID = p.config.RunID

	data, err := json.Marshal(summary)
	if err != nil {
		p.failed.Add(1)
		return fmt.Errorf("encode summary: %w", err)
	}

	receivers, err := p.config.Client.Publish(ctx, p.config.Channel, data).Result()
	if err != nil {
		p.failed.Add(1)
		return bferrors.NewOperationError("report", "Publish", err).WithContext(p.config.Channel)
	}

	p.published.Add(1)
	p.logger.Debug("published cycle summary",
		zap.Int("cycle", result.Cycle),
		zap.Int64("receivers", receivers))
	return nil
}

// Published returns the number of summaries published successfully.
func (p *RedisPublisher) Published() int64 {
	return p.published.Load()
}

// Failed returns the number of summaries that could not be published.
func (p *RedisPublisher) Failed() int64 {
	return p.failed.Load()
}
