package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/example/ec-order-engine/internal/app"
	"github.com/example/ec-order-engine/internal/config"
	"github.com/example/ec-order-engine/internal/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()
	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := app.Build(ctx, cfg)
	if err != nil {
		l.Fatal("Failed to start sweeper", zap.Error(err))
	}
	defer engine.Close()

	l.Info("Sweeper started",
		zap.Duration("interval", cfg.Sweep.Interval),
		zap.Duration("pending_ttl", cfg.Sweep.PendingTTL))

	if err := engine.Sweeper.Run(ctx, cfg.Sweep.Interval); err != nil {
		l.Error("Sweeper stopped with error", zap.Error(err))
	}
	l.Info("Sweeper stopped")
}
