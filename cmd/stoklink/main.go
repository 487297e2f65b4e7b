package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stoklink/stoklink/internal/accurate"
	"github.com/stoklink/stoklink/internal/adjustments"
	adjhttp "github.com/stoklink/stoklink/internal/adjustments/http"
	"github.com/stoklink/stoklink/internal/app"
	"github.com/stoklink/stoklink/internal/credentials"
	credhttp "github.com/stoklink/stoklink/internal/credentials/http"
	"github.com/stoklink/stoklink/internal/observability"
	"github.com/stoklink/stoklink/internal/platform/cache"
	"github.com/stoklink/stoklink/internal/platform/db"
	"github.com/stoklink/stoklink/internal/syncjobs"
	syncjobshttp "github.com/stoklink/stoklink/internal/syncjobs/http"
	"github.com/stoklink/stoklink/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	// One limiter per process; every dispatcher call in this binary shares
	// the account-wide quota.
	limiter := accurate.NewRateLimiter(cfg.ERPMaxConcurrent, cfg.ERPRequestsPerSecond)
	erpClient := accurate.NewClient(nil, limiter, accurate.NewSigner(), metrics)
	accountClient := accurate.NewAccountClient(cfg.AccurateAccountHost, cfg.AccurateClientID, cfg.AccurateClientSecret, nil)

	credRepo := credentials.NewPGRepository(pool)
	credService := credentials.NewService(credRepo, accountClient, logger)

	pipelineService := adjustments.NewService(erpClient, logger)
	pipelineService.UseItemCache(adjustments.NewItemCache(redisClient))

	jobRepo := syncjobs.NewPGRepository(pool)

	queueClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		CredentialsHandler: credhttp.NewHandler(credService, logger),
		AdjustmentsHandler: adjhttp.NewHandler(credService, pipelineService, jobRepo, queueClient, logger),
		SyncJobsHandler:    syncjobshttp.NewHandler(jobRepo, logger),
		QueueHandler:       jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
