package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vnykmshr/batchflow/internal/config"
	"github.com/vnykmshr/batchflow/pkg/scheduling/report"
	"github.com/vnykmshr/batchflow/pkg/scheduling/scheduler"
)

func newRunCommand() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the demo schedule until interrupted or the cycle limit is reached",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := config.NewViper()
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.Load(v, configPath)
			if err != nil {
				return err
			}
			return run(cmd, cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func run(cmd *cobra.Command, cfg config.Config) error {
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))

	if cfg.Metrics.Enabled && cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, logger)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	work := newWorkload(cfg.Demo)
	observers := []scheduler.Observer{
		work,
		summaryPrinter{out: cmd.OutOrStdout(), runID: runID},
		report.LogObserver(logger.Named("cycles")),
	}

	if opts := cfg.RedisOptions(); opts != nil {
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Redis.Timeout)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not reachable, summaries will fail to publish",
				zap.String("addr", opts.Addr), zap.Error(err))
		}
		cancel()

		publisher, err := report.NewRedisPublisher(report.RedisConfig{
			Client:    rdb,
			Channel:   cfg.Redis.Channel,
			Scheduler: cfg.Schedule.Name,
			RunID:     runID,
			Timeout:   cfg.Redis.Timeout,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		observers = append(observers, publisher)
	}

	schedConfig, err := cfg.SchedulerConfig(work.produce, report.Multi(observers...), logger)
	if err != nil {
		return err
	}
	s, err := scheduler.New(schedConfig)
	if err != nil {
		return err
	}
	if err := s.Start(context.Background()); err != nil {
		return err
	}

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	interrupts := 0
	for {
		select {
		case <-s.Done():
			logger.Info("run finished", zap.Int("cycles", s.CycleCount()), zap.Int("skipped_ticks", s.SkippedTicks()))
			return nil
		case sig := <-signals:
			interrupts++
			if interrupts == 1 {
				logger.Info("stopping after the current cycle, interrupt again to abort", zap.Stringer("signal", sig))
				s.Stop(true)
				continue
			}
			logger.Warn("aborting the current cycle", zap.Stringer("signal", sig))
			s.Stop(false)
		}
	}
}

func serveMetrics(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}
