package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/attaboy/settlement/internal/infra"
	"github.com/attaboy/settlement/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("outbox relay failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = infra.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	if !cfg.HasDatabase() {
		return fmt.Errorf("database not configured: set DATABASE_URL or PGHOST/PGUSER")
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()
	if !producer.Enabled() {
		// Relaying into a no-op producer would mark events published and lose them.
		return fmt.Errorf("kafka disabled: set KAFKA_ENABLED=true and KAFKA_BROKERS")
	}

	relay := infra.NewOutboxRelay(pool, repository.NewOutboxRepository(), producer, 500*time.Millisecond, 100, logger)
	relay.Run(ctx)

	logger.Info("outbox relay stopped gracefully")
	return nil
}
