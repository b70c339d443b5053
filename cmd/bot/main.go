package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"fh-draw-bot/internal/alerts"
	"fh-draw-bot/internal/config"
	"fh-draw-bot/internal/engine"
	"fh-draw-bot/internal/ledger"
	"fh-draw-bot/internal/logger"
	"fh-draw-bot/internal/metrics"
	"fh-draw-bot/internal/provider"
)

func main() {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zl, err := logger.New("fh-draw-bot", cfg.Env)
	if err != nil {
		log.Fatalf("Logger init failed: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	store, err := ledger.Open(cfg.DBPath)
	if err != nil {
		zl.Fatal("opening ledger", zap.Error(err))
	}
	defer store.Close()

	client := provider.NewClient(cfg.ProviderBaseURL, cfg.HTTPTimeout, zl)

	notifier := alerts.NewNotifier(cfg.AlertCooldown, zl)
	if cfg.BotToken != "" && cfg.ChatID != "" {
		if err := notifier.EnableTelegram(cfg.BotToken, cfg.ChatID); err != nil {
			zl.Warn("Telegram disabled", zap.Error(err))
		} else {
			zl.Info("Telegram alerts enabled")
		}
	}

	eng := engine.New(client, notifier, zl, cfg.ScanInterval)

	metricsSrv := metrics.StartServer(cfg.MetricsPort, store.Ping, zl)

	zl.Info("starting",
		zap.String("db", cfg.DBPath),
		zap.String("provider", cfg.ProviderBaseURL),
		zap.Duration("interval", cfg.ScanInterval),
		zap.String("metrics_port", cfg.MetricsPort),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		zl.Info("shutdown signal received, stopping")
		cancel()
	}()

	notifier.ListenForCommands(ctx)
	eng.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}
