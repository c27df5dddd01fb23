package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/ec-order-engine/internal/api"
	"github.com/example/ec-order-engine/internal/app"
	"github.com/example/ec-order-engine/internal/auth"
	"github.com/example/ec-order-engine/internal/config"
	"github.com/example/ec-order-engine/internal/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
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
	if len(cfg.JWTSecret) < 32 {
		l.Fatal("JWT_SECRET must be at least 32 characters long")
	}

	// Money is a JSON number on the wire.
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := app.Build(ctx, cfg)
	if err != nil {
		l.Fatal("Failed to start order engine", zap.Error(err))
	}
	defer engine.Close()

	handlers := api.NewHandlers(engine.Orders, engine.Payments, cfg.IsDevelopment())
	router := api.NewRouter(api.RouterConfig{
		Handlers:   handlers,
		JWTService: auth.NewJWTService(cfg.JWTSecret, 15*time.Minute,
			auth.WithIssuer(cfg.JWTIssuer), auth.WithLeeway(30*time.Second)),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Info("Server started",
			zap.String("addr", server.Addr),
			zap.String("environment", cfg.Environment),
			zap.String("store", cfg.Database.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Sweep.InProcess {
		g.Go(func() error {
			l.Info("Sweeper running in process", zap.Duration("interval", cfg.Sweep.Interval))
			return engine.Sweeper.Run(gctx, cfg.Sweep.Interval)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		l.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		l.Error("Server stopped with error", zap.Error(err))
	}
}
