// Package app assembles the engine's components from configuration so the
// API and sweeper binaries share one wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/example/ec-order-engine/internal/command"
	"github.com/example/ec-order-engine/internal/config"
	"github.com/example/ec-order-engine/internal/domain/inventory"
	"github.com/example/ec-order-engine/internal/domain/order"
	"github.com/example/ec-order-engine/internal/infrastructure/cache"
	"github.com/example/ec-order-engine/internal/infrastructure/kafka"
	"github.com/example/ec-order-engine/internal/infrastructure/store"
	"github.com/example/ec-order-engine/internal/logger"
	"github.com/example/ec-order-engine/internal/maintenance"
	"github.com/example/ec-order-engine/internal/payment"
	"github.com/example/ec-order-engine/internal/reconciliation"
	"go.uber.org/zap"
)

// App holds the wired engine.
type App struct {
	Store    store.Store
	Gateway  *payment.Client
	Orders   *command.Handler
	Payments *reconciliation.Handler
	Sweeper  *maintenance.Sweeper

	closers []io.Closer
}

// Build connects every backing service named in cfg. Optional services
// degrade: no Kafka brokers means events are dropped, an unreachable Redis
// means webhook dedupe relies on the per-order event log alone.
func Build(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	log := logger.Named("app")
	a := &App{}

	switch cfg.Database.Driver {
	case "memory":
		log.Warn("using in-memory store, data is lost on restart")
		a.Store = store.NewMemoryStore()
	default:
		db, err := store.ConnectPostgres(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, db)
		pg := store.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
		a.Store = pg
		log.Info("connected to PostgreSQL")
	}

	var publisher order.Publisher = order.NopPublisher{}
	if brokers := cfg.Kafka.BrokerList(); len(brokers) > 0 {
		producer := kafka.NewProducer(brokers, cfg.Kafka.Topic)
		a.closers = append(a.closers, producer)
		publisher = producer
		log.Info("publishing order events", zap.Strings("brokers", brokers), zap.String("topic", cfg.Kafka.Topic))
	} else {
		log.Warn("no Kafka brokers configured, order events are not published")
	}

	var dedupe reconciliation.Deduper = cache.NopDeduper{}
	if cfg.Redis.URL != "" {
		rd, err := cache.NewRedisDeduper(cfg.Redis.URL, cfg.Redis.DedupeTTL)
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := rd.Ping(ctx); err != nil {
			log.Warn("redis unavailable, webhook dedupe window disabled", zap.Error(err))
			_ = rd.Close()
		} else {
			a.closers = append(a.closers, rd)
			dedupe = rd
		}
	}

	a.Gateway = payment.NewClient(payment.Config{
		BaseURL:       cfg.Gateway.BaseURL,
		KeyID:         cfg.Gateway.KeyID,
		KeySecret:     cfg.Gateway.KeySecret,
		WebhookSecret: cfg.Gateway.WebhookSecret,
		Timeout:       cfg.Gateway.Timeout,
	})

	ledger := inventory.NewLedger(a.Store, publisher)
	a.Orders = command.NewHandler(command.NewValidator(a.Store), ledger, a.Store, a.Gateway, publisher, cfg.Currency)
	a.Payments = reconciliation.NewHandler(a.Store, ledger, a.Gateway, a.Gateway, dedupe, publisher)
	a.Sweeper = maintenance.NewSweeper(a.Store, ledger, a.Payments, publisher, cfg.Sweep.PendingTTL)
	return a, nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
