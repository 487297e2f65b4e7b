package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/stoklink/stoklink/internal/accurate"
	"github.com/stoklink/stoklink/internal/adjustments"
	"github.com/stoklink/stoklink/internal/app"
	"github.com/stoklink/stoklink/internal/credentials"
	"github.com/stoklink/stoklink/internal/platform/db"
	"github.com/stoklink/stoklink/internal/syncjobs"
	"github.com/stoklink/stoklink/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := os.MkdirAll(cfg.ExportDir, 0o755); err != nil {
		logger.Error("create export dir", slog.String("dir", cfg.ExportDir), slog.Any("error", err))
		os.Exit(1)
	}

	limiter := accurate.NewRateLimiter(cfg.ERPMaxConcurrent, cfg.ERPRequestsPerSecond)
	erpClient := accurate.NewClient(nil, limiter, accurate.NewSigner(), nil)
	accountClient := accurate.NewAccountClient(cfg.AccurateAccountHost, cfg.AccurateClientID, cfg.AccurateClientSecret, nil)

	credRepo := credentials.NewPGRepository(pool)
	credService := credentials.NewService(credRepo, accountClient, logger)
	pipelineService := adjustments.NewService(erpClient, logger)
	jobRepo := syncjobs.NewPGRepository(pool)

	runner := jobs.NewPipelineRunner(credService, pipelineService, jobRepo, cfg.ExportDir, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  runner.Handlers(),
		Cron: []jobs.CronRegistration{
			{Spec: cfg.SessionKeepAliveCron, Task: jobs.NewSessionKeepAliveTask(), Options: []asynq.Option{asynq.Queue(jobs.QueueSync), asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
