package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/olliezdai13/SmartFridge/internal/common"
	"github.com/olliezdai13/SmartFridge/internal/export"
	"github.com/olliezdai13/SmartFridge/internal/llm/openai"
	"github.com/olliezdai13/SmartFridge/internal/pipeline"
	"github.com/olliezdai13/SmartFridge/internal/queue"
	"github.com/olliezdai13/SmartFridge/internal/repository"
	"github.com/olliezdai13/SmartFridge/internal/server"
	"github.com/olliezdai13/SmartFridge/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("opening DB", "error", err)
		os.Exit(1)
	}
	defer repository.Close(db, logger)

	if cfg.Database.AutoMigrate {
		if err := repository.AutoMigrate(db); err != nil {
			logger.Error("automigrate", "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewS3Store(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Error("object storage init", "error", err)
		os.Exit(1)
	}

	vision, err := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	if err != nil {
		logger.Error("llm client init", "error", err)
		os.Exit(2)
	}

	snapshots := repository.NewSnapshotRepository(db, logger)
	products := repository.NewProductRepository(db, logger)
	q := queue.New(db, logger, cfg.Worker.MaxDeliveries)

	processor := pipeline.NewProcessor(snapshots, store, vision, cfg.LLM.SystemPrompt, logger)
	pool := pipeline.NewPool(q, processor, snapshots, cfg.Worker, logger)
	pool.Start(ctx)
	defer pool.Stop()

	categorizer := pipeline.NewCategorizer(products, vision, cfg.Categorize.BatchLimit, logger)

	var scheduler *cron.Cron
	if spec := cfg.Categorize.CronSpec; spec != "" {
		scheduler = cron.New()
		if _, err := scheduler.AddFunc(spec, func() {
			if _, _, err := categorizer.Run(ctx); err != nil {
				logger.Error("categorize.scheduled_run_failed", "error", err)
			}
		}); err != nil {
			logger.Error("invalid CATEGORIZE_CRON", "spec", spec, "error", err)
			os.Exit(2)
		}
		scheduler.Start()
		defer scheduler.Stop()
		logger.Info("categorize.scheduled", "spec", spec)
	}

	exporter := export.NewService(snapshots, logger)
	srv := server.New(db, snapshots, store, q, categorizer, exporter, vision, *cfg, logger)

	go func() {
		if err := srv.Listen(cfg.Server.Addr); err != nil {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	if err := srv.Shutdown(); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
}
