package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jainyogya07/monolith/pkg/apiserver"
	"github.com/jainyogya07/monolith/pkg/config"
	"github.com/jainyogya07/monolith/pkg/decision"
	"github.com/jainyogya07/monolith/pkg/eventbus"
	"github.com/jainyogya07/monolith/pkg/logging"
	"github.com/jainyogya07/monolith/pkg/metrics"
	redisclient "github.com/jainyogya07/monolith/pkg/store/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, logger, prometheus.DefaultRegisterer)
	stop()

	code := 0
	if err != nil {
		logger.Error("monolith exited with error", zap.Error(err))
		code = 1
	}
	_ = logger.Sync()
	os.Exit(code)
}

// run serves until ctx is cancelled or a component fails. Every resource it
// opens is released before it returns.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, registerer prometheus.Registerer) error {
	var opts []decision.Option
	var telemetryPublisher metrics.SnapshotPublisher
	if cfg.Redis.Enabled {
		redis, err := redisclient.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer redis.Close()

		bus := eventbus.NewBus(redis.Client())
		opts = append(opts, decision.WithPublisher(bus))
		telemetryPublisher = bus
		logger.Info("event publication enabled",
			zap.Strings("addresses", cfg.Redis.Addresses),
			zap.String("decisions_channel", eventbus.ChannelDecisions),
			zap.String("telemetry_channel", eventbus.ChannelTelemetry),
		)
	}

	engine := decision.NewEngine(decision.Config{
		Queue:             cfg.Queue.ManagerConfig(),
		Forecast:          cfg.Forecast.ForecasterConfig(),
		DropLogsPerSecond: cfg.Events.LogDropsPerSecond,
		PublishBuffer:     cfg.Events.PublishBuffer,
	}, logger.Named("engine"), opts...)

	sampler := metrics.NewSampler(engine, telemetryPublisher, logger.Named("telemetry"),
		registerer, cfg.Telemetry.Interval)

	server := apiserver.NewServer(engine, cfg, logger.Named("http"))
	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.ReadTimeout * 2,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(gctx) })
	g.Go(func() error { return sampler.Run(gctx) })
	g.Go(func() error {
		logger.Info("Starting Monolith", zap.Int("port", cfg.Server.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("monolith stopped", zap.Int("backlog", engine.QueueLength()))
	return nil
}
