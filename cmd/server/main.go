package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/assetdock/assetdock/internal/aimap"
	"github.com/assetdock/assetdock/internal/analyzer"
	"github.com/assetdock/assetdock/internal/api"
	"github.com/assetdock/assetdock/internal/config"
	"github.com/assetdock/assetdock/internal/database"
	"github.com/assetdock/assetdock/internal/logging"
	"github.com/assetdock/assetdock/internal/queue"
	"github.com/assetdock/assetdock/internal/repository"
	"github.com/assetdock/assetdock/internal/s3storage"
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

	queueClient := queue.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queueClient.Close()

	jobs := repository.NewImportJobRepository(pool)
	fields := repository.NewCustomFieldRepository(pool)

	var suggester analyzer.SuggestionSource
	if cfg.AIProvider != "" {
		s, err := aimap.New(cfg)
		if err != nil {
			logger.Warn("ai suggestions disabled", "error", err)
		} else {
			suggester = s
		}
	}
	an := analyzer.New(suggester, fields, logger)

	srv := api.New(cfg, jobs, store, queueClient, an, fields, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
