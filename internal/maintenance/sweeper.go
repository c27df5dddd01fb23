// Package maintenance holds background jobs that keep order state honest
// when clients walk away mid-checkout.
package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/example/ec-order-engine/internal/apperr"
	"github.com/example/ec-order-engine/internal/domain/inventory"
	"github.com/example/ec-order-engine/internal/domain/order"
	"github.com/example/ec-order-engine/internal/logger"
	"go.uber.org/zap"
)

const (
	expiryNote = "Expired: no payment received"
	batchSize  = 100
)

// Reconciler settles an order from the gateway's own records.
type Reconciler interface {
	Reconcile(ctx context.Context, gatewayOrderID string) (*order.Order, bool, error)
}

// Result counts what one sweep did.
type Result struct {
	Checked    int
	Reconciled int
	Expired    int
	Failed     int
}

// Sweeper expires online-payment orders that stayed pending past the TTL.
type Sweeper struct {
	orders     order.Repository
	ledger     *inventory.Ledger
	reconciler Reconciler
	publisher  order.Publisher
	ttl        time.Duration
	log        *zap.Logger
}

func NewSweeper(orders order.Repository, ledger *inventory.Ledger, reconciler Reconciler, publisher order.Publisher, ttl time.Duration) *Sweeper {
	if publisher == nil {
		publisher = order.NopPublisher{}
	}
	return &Sweeper{
		orders:     orders,
		ledger:     ledger,
		reconciler: reconciler,
		publisher:  publisher,
		ttl:        ttl,
		log:        logger.Named("sweeper"),
	}
}

// ExpireStale checks every stale pending order once. A payment the gateway
// knows about is reconciled; anything else is cancelled and its stock
// restored. Running it twice has no further effect.
func (s *Sweeper) ExpireStale(ctx context.Context, now time.Time) (Result, error) {
	var res Result
	stale, err := s.orders.ListStalePending(ctx, now.Add(-s.ttl), batchSize)
	if err != nil {
		return res, err
	}

	for _, o := range stale {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Checked++
		log := s.log.With(zap.String("order_id", o.ID), zap.String("order_number", o.OrderNumber))

		if o.Payment.GatewayOrderID != "" && s.reconciler != nil {
			settled, found, err := s.reconciler.Reconcile(ctx, o.Payment.GatewayOrderID)
			if err != nil {
				log.Warn("gateway check failed, order left pending", zap.Error(err))
				res.Failed++
				continue
			}
			if found && settled != nil && settled.Status() != order.StatusPending {
				res.Reconciled++
				continue
			}
			if found && settled != nil && settled.Payment.Status == order.PaymentAuthorized {
				log.Info("payment authorized but not captured, order left pending")
				continue
			}
		}

		expired, err := s.expire(ctx, o.ID, now)
		switch {
		case err == nil && expired:
			res.Expired++
		case err == nil:
		case errors.Is(err, apperr.ErrIllegalTransition):
			// Moved on since it was listed.
		default:
			log.Error("failed to expire order", zap.Error(err))
			res.Failed++
		}
	}

	if res.Checked > 0 {
		s.log.Info("sweep finished",
			zap.Int("checked", res.Checked),
			zap.Int("reconciled", res.Reconciled),
			zap.Int("expired", res.Expired),
			zap.Int("failed", res.Failed))
	}
	return res, nil
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.ExpireStale(ctx, time.Now()); err != nil && ctx.Err() == nil {
			s.log.Error("sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) expire(ctx context.Context, id string, now time.Time) (bool, error) {
	var (
		owed    []inventory.Line
		expired bool
	)
	o, err := order.Mutate(ctx, s.orders, order.ByID(s.orders, id), func(o *order.Order) (bool, error) {
		owed, expired = nil, false
		if o.Status() != order.StatusPending || o.IsPaid {
			return false, nil
		}
		if err := o.Transition(order.StatusCancelled, expiryNote, now); err != nil {
			return false, err
		}
		owed, expired = inventory.ClaimRelease(o), true
		return true, nil
	})
	if err != nil || !expired {
		return false, err
	}

	if len(owed) > 0 {
		if err := s.ledger.Restore(ctx, o.OrderNumber, owed); err != nil {
			s.log.Error("failed to restore stock for expired order", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
	if err := order.PublishChanges(ctx, s.publisher, o, now); err != nil {
		s.log.Warn("failed to publish order events", zap.String("order_id", o.ID), zap.Error(err))
	}
	s.log.Info("expired unpaid order", zap.String("order_id", o.ID), zap.String("order_number", o.OrderNumber))
	return true, nil
}
