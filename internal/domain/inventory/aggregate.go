package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-order-engine/internal/apperr"
	"github.com/example/ec-order-engine/internal/domain/order"
	"github.com/example/ec-order-engine/internal/logger"
	"go.uber.org/zap"
)

var ErrInvalidQuantity = errors.New("quantity must be positive")

// StockRef identifies one stock counter: a product, or one size of it.
type StockRef struct {
	ProductID string `json:"productId"`
	Size      string `json:"size,omitempty"`
}

func (r StockRef) String() string {
	if r.Size == "" {
		return r.ProductID
	}
	return r.ProductID + "/" + r.Size
}

// Line is a quantity taken from or returned to one counter.
type Line struct {
	Ref      StockRef `json:"ref"`
	Quantity int      `json:"quantity"`
}

// StockStore holds the counters. CompareAndDecrement must apply the
// decrement only when the counter holds at least qty, as one atomic step.
type StockStore interface {
	CompareAndDecrement(ctx context.Context, ref StockRef, qty int) (bool, error)
	Increment(ctx context.Context, ref StockRef, qty int) error
}

// Ledger is the only writer of stock counters.
type Ledger struct {
	store     StockStore
	publisher order.Publisher
	log       *zap.Logger
	now       func() time.Time
}

func NewLedger(store StockStore, publisher order.Publisher) *Ledger {
	if publisher == nil {
		publisher = order.NopPublisher{}
	}
	return &Ledger{
		store:     store,
		publisher: publisher,
		log:       logger.Named("ledger"),
		now:       time.Now,
	}
}

// ReserveAndDecrement takes every line from stock or none of them. When a
// counter is short, decrements already applied for orderRef are reversed
// and ErrInsufficientStock is returned.
func (l *Ledger) ReserveAndDecrement(ctx context.Context, orderRef string, lines []Line) error {
	merged, err := Merge(lines)
	if err != nil {
		return err
	}

	applied := make([]Line, 0, len(merged))
	for _, line := range merged {
		ok, err := l.store.CompareAndDecrement(ctx, line.Ref, line.Quantity)
		if err == nil && !ok {
			err = fmt.Errorf("%w: %s", apperr.ErrInsufficientStock, line.Ref)
		}
		if err != nil {
			l.compensate(ctx, orderRef, applied)
			return err
		}
		applied = append(applied, line)
	}

	l.publish(ctx, orderRef, EventStockDecremented, applied)
	return nil
}

// Restore returns quantities to stock. It attempts every line and reports
// all failures together.
func (l *Ledger) Restore(ctx context.Context, orderRef string, lines []Line) error {
	merged, err := Merge(lines)
	if err != nil {
		return err
	}

	var errs []error
	restored := make([]Line, 0, len(merged))
	for _, line := range merged {
		if err := l.store.Increment(ctx, line.Ref, line.Quantity); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", line.Ref, err))
			continue
		}
		restored = append(restored, line)
	}

	if len(restored) > 0 {
		l.publish(ctx, orderRef, EventStockRestored, restored)
	}
	return errors.Join(errs...)
}

// ClaimRelease marks the stock held by o as handed back and returns the
// lines to restore. It returns nil when nothing is owed, so persisting the
// claim before calling Restore gives at-most-once release.
func ClaimRelease(o *order.Order) []Line {
	if !o.NeedsRestock() {
		return nil
	}
	o.StockReleased = true
	return LinesFromOrder(o)
}

// compensate reverses applied decrements. It runs even if the request
// context is already cancelled.
func (l *Ledger) compensate(ctx context.Context, orderRef string, applied []Line) {
	if len(applied) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, line := range applied {
		if err := l.store.Increment(ctx, line.Ref, line.Quantity); err != nil {
			l.log.Error("compensating increment failed",
				zap.String("order", orderRef),
				zap.String("stock_ref", line.Ref.String()),
				zap.Int("quantity", line.Quantity),
				zap.Error(err))
		}
	}
	l.log.Info("reservation rolled back", zap.String("order", orderRef), zap.Int("lines", len(applied)))
}

func (l *Ledger) publish(ctx context.Context, orderRef, eventType string, lines []Line) {
	if len(lines) == 0 {
		return
	}
	event := StockMoved{Type: eventType, OrderRef: orderRef, Lines: lines, At: l.now()}
	if err := l.publisher.Publish(ctx, orderRef, event); err != nil {
		l.log.Warn("failed to publish stock event", zap.String("order", orderRef), zap.String("event", eventType), zap.Error(err))
	}
}

// Merge sums quantities per counter, keeping first-seen order.
func Merge(lines []Line) ([]Line, error) {
	index := make(map[StockRef]int, len(lines))
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, line.Ref)
		}
		if i, ok := index[line.Ref]; ok {
			out[i].Quantity += line.Quantity
			continue
		}
		index[line.Ref] = len(out)
		out = append(out, line)
	}
	return out, nil
}

// LinesFromOrder returns the stock held by o's reserved line items.
func LinesFromOrder(o *order.Order) []Line {
	var lines []Line
	for _, item := range o.Items {
		if item.StockReserved {
			lines = append(lines, Line{Ref: StockRef{ProductID: item.ProductID, Size: item.Size}, Quantity: item.Quantity})
		}
	}
	return lines
}
