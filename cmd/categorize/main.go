package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/olliezdai13/SmartFridge/internal/common"
	"github.com/olliezdai13/SmartFridge/internal/llm/openai"
	"github.com/olliezdai13/SmartFridge/internal/pipeline"
	"github.com/olliezdai13/SmartFridge/internal/repository"
)

// One-shot categorization batch for cron or manual runs.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if cfg.Database.DSN == "" {
		logger.Error("DB_URL env var is required")
		os.Exit(2)
	}
	if cfg.LLM.APIKey == "" {
		logger.Error("OPENAI_API_KEY env var is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	db, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("opening DB", "error", err)
		os.Exit(1)
	}
	defer repository.Close(db, logger)

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

	products := repository.NewProductRepository(db, logger)
	categorizer := pipeline.NewCategorizer(products, vision, cfg.Categorize.BatchLimit, logger)

	updated, total, err := categorizer.Run(ctx)
	if err != nil {
		logger.Error("categorize batch failed", "total", total, "error", err)
		os.Exit(1)
	}
	logger.Info("categorize batch done", "updated", updated, "total", total)
}
