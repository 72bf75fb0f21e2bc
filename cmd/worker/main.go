package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/assetdock/assetdock/internal/config"
	"github.com/assetdock/assetdock/internal/database"
	"github.com/assetdock/assetdock/internal/importer"
	"github.com/assetdock/assetdock/internal/logging"
	"github.com/assetdock/assetdock/internal/repository"
	"github.com/assetdock/assetdock/internal/s3storage"
	"github.com/assetdock/assetdock/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, closeLogs := logging.Setup(cfg.LogFile, cfg.LogLevel)
	defer closeLogs()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	store, err := s3storage.New(cfg)
	if err != nil {
		logger.Error("init storage", "error", err)
		os.Exit(1)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		logger.Error("ensure bucket", "error", err)
		os.Exit(1)
	}

	jobs := repository.NewImportJobRepository(pool)
	executor := importer.New(
		repository.NewAssetRepository(pool),
		repository.NewUserRepository(pool),
		repository.NewSetRepository(pool),
		repository.NewCustomFieldRepository(pool),
		logger,
	)

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.Concurrency,
	})
	processor := worker.NewProcessor(jobs, store, executor, logger)
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	logger.Info("worker started", "concurrency", cfg.Concurrency)
	if err := server.Run(mux); err != nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
