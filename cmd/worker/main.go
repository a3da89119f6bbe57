package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"newsbot/internal/app"
	"newsbot/internal/config"
	workerPkg "newsbot/internal/infra/worker"
	"newsbot/internal/observability/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	logger := logging.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Worker configuration (fail-open strategy)
	workerMetrics := workerPkg.NewWorkerMetrics()
	workerConfig := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Int("health_port", workerConfig.HealthPort),
		slog.Int("metrics_port", workerConfig.MetricsPort),
		slog.Bool("run_on_start", workerConfig.RunOnStart))

	cfg, warnings, err := config.Load(*configPath)
	for _, w := range warnings {
		logger.Warn("Configuration fallback applied", slog.String("warning", w))
	}
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded",
		slog.String("path", cfg.Path),
		slog.String("cache_path", cfg.Cache.Path),
		slog.Int("sources", len(cfg.Sources)),
		slog.Duration("deadline", cfg.Fetch.Deadline))

	engine, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize engine", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error("failed to close cache", slog.Any("error", err))
		}
	}()

	startMetricsServer(ctx, logger, workerConfig.MetricsAddr())

	healthServer := workerPkg.NewHealthServer(workerConfig.HealthAddr(), logger, engine.Store.Ping)
	go func() {
		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	runner := workerPkg.NewRunner(engine.Fetch, engine.Catalog.EnabledSources(),
		cfg.RefreshOptions(), cfg.Fetch.Deadline, workerMetrics, logger)

	if err := runWorker(ctx, logger, runner, workerConfig, healthServer); err != nil {
		logger.Error("worker stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

// runWorker schedules the refresh job and blocks until ctx is cancelled.
func runWorker(ctx context.Context, logger *slog.Logger, runner *workerPkg.Runner, cfg *workerPkg.WorkerConfig, healthServer *workerPkg.HealthServer) error {
	c := workerPkg.NewScheduler(*cfg, logger)
	if _, err := runner.Schedule(ctx, c, cfg.CronSchedule); err != nil {
		return err
	}
	c.Start()

	healthServer.SetReady(true)
	logger.Info("worker started", slog.String("schedule", cfg.CronSchedule), slog.String("timezone", cfg.Timezone))

	initial := make(chan struct{})
	if cfg.RunOnStart {
		go func() {
			defer close(initial)
			_, _ = runner.RunOnce(ctx)
		}()
	} else {
		close(initial)
	}

	<-ctx.Done()
	healthServer.SetReady(false)
	logger.Info("worker shutting down")

	// 実行中のリフレッシュの終了を待つ
	<-c.Stop().Done()
	<-initial
	logger.Info("worker stopped")
	return nil
}
