package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/ec-order-engine/internal/apperr"
	"github.com/example/ec-order-engine/internal/domain/inventory"
	"github.com/example/ec-order-engine/internal/domain/order"
	"github.com/example/ec-order-engine/internal/logger"
	"github.com/example/ec-order-engine/internal/payment"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Gateway opens remote orders for online payments.
type Gateway interface {
	CreateRemoteOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string, notes map[string]string) (*payment.RemoteOrder, error)
	KeyID() string
}

// PaymentOrder is what the checkout widget needs to collect a payment.
type PaymentOrder struct {
	Remote *payment.RemoteOrder
	KeyID  string
	Order  *order.Order
}

type Handler struct {
	validator *Validator
	ledger    *inventory.Ledger
	orders    order.Repository
	gateway   Gateway
	publisher order.Publisher
	currency  string
	log       *zap.Logger
	now       func() time.Time
}

func NewHandler(
	validator *Validator,
	ledger *inventory.Ledger,
	orders order.Repository,
	gateway Gateway,
	publisher order.Publisher,
	currency string,
) *Handler {
	if publisher == nil {
		publisher = order.NopPublisher{}
	}
	return &Handler{
		validator: validator,
		ledger:    ledger,
		orders:    orders,
		gateway:   gateway,
		publisher: publisher,
		currency:  currency,
		log:       logger.Named("orders"),
		now:       time.Now,
	}
}

// PlaceOrder validates the request, takes the stock and stores the order
// as pending and unpaid. Only offline methods are accepted here; online
// orders need a gateway order and go through CreatePaymentOrder.
func (h *Handler) PlaceOrder(ctx context.Context, cmd PlaceOrder, actor *Actor) (*order.Order, error) {
	if cmd.PaymentMethod.IsOnline() {
		return nil, &apperr.ValidationError{Fields: []apperr.FieldError{{
			Field:   "paymentMethod",
			Message: fmt.Sprintf("%s is paid online, use /payment/create-order", cmd.PaymentMethod),
		}}}
	}

	draft, err := h.validator.Validate(ctx, cmd, actor)
	if err != nil {
		return nil, err
	}

	o := draft.NewOrder(h.currency, h.now())
	if err := h.place(ctx, o, draft.StockLines(), nil); err != nil {
		return nil, err
	}
	return o, nil
}

// CreatePaymentOrder places an online-payment order. The gateway order is
// opened before the local order is stored, so a gateway failure or timeout
// leaves nothing behind but restored stock.
func (h *Handler) CreatePaymentOrder(ctx context.Context, cmd CreatePaymentOrder, actor *Actor) (*PaymentOrder, error) {
	if actor == nil || actor.UserID == "" {
		return nil, fmt.Errorf("%w: sign in to pay online", apperr.ErrMissingCustomerInfo)
	}

	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = h.currency
	}
	if currency != h.currency {
		return nil, &apperr.ValidationError{Fields: []apperr.FieldError{{
			Field:   "currency",
			Message: fmt.Sprintf("only %s is accepted", h.currency),
		}}}
	}

	draft, err := h.validator.Validate(ctx, cmd.placeOrder(), actor)
	if err != nil {
		return nil, err
	}

	o := draft.NewOrder(currency, h.now())
	var remote *payment.RemoteOrder
	err = h.place(ctx, o, draft.StockLines(), func(ctx context.Context) error {
		var err error
		remote, err = h.gateway.CreateRemoteOrder(ctx, o.TotalPrice, o.Currency, o.OrderNumber, map[string]string{
			"orderId":     o.ID,
			"orderNumber": o.OrderNumber,
		})
		if err != nil {
			return err
		}
		o.Payment.GatewayOrderID = remote.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &PaymentOrder{Remote: remote, KeyID: h.gateway.KeyID(), Order: o}, nil
}

// place reserves stock, runs beforeCreate and stores o. Any failure after
// the reservation hands the stock back.
func (h *Handler) place(ctx context.Context, o *order.Order, lines []inventory.Line, beforeCreate func(context.Context) error) error {
	if err := h.ledger.ReserveAndDecrement(ctx, o.OrderNumber, lines); err != nil {
		return err
	}

	rollback := func(cause error) error {
		if err := h.ledger.Restore(context.WithoutCancel(ctx), o.OrderNumber, lines); err != nil {
			h.log.Error("failed to restore stock after aborted order",
				zap.String("order_number", o.OrderNumber), zap.Error(err))
		}
		return cause
	}

	if beforeCreate != nil {
		if err := beforeCreate(ctx); err != nil {
			return rollback(err)
		}
	}

	o.RecordPlaced()
	if err := h.orders.Create(ctx, o); err != nil {
		o.PullEvents()
		return rollback(fmt.Errorf("store order %s: %w", o.OrderNumber, err))
	}

	h.log.Info("order placed",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.String("payment_method", string(o.Payment.Method)),
		zap.Bool("guest", o.IsGuestOrder),
		zap.String("total", o.TotalPrice.StringFixed(2)))
	h.publish(ctx, o)
	return nil
}

// UpdateStatus is the admin transition. Cancelling or refunding an order
// that never shipped returns its stock.
func (h *Handler) UpdateStatus(ctx context.Context, cmd UpdateStatus) (*order.Order, error) {
	target, ok := order.ParseStatus(cmd.Status)
	if !ok {
		return nil, &apperr.ValidationError{Fields: []apperr.FieldError{{
			Field:   "status",
			Message: fmt.Sprintf("unknown status %q", cmd.Status),
		}}}
	}
	note := strings.TrimSpace(cmd.Note)

	return h.transition(ctx, cmd.OrderID, func(o *order.Order) error {
		return o.Transition(target, note, h.now())
	})
}

// UpdateTracking assigns a tracking number, shipping a processing order.
func (h *Handler) UpdateTracking(ctx context.Context, cmd UpdateTracking) (*order.Order, error) {
	number := strings.TrimSpace(cmd.TrackingNumber)
	if number == "" {
		return nil, &apperr.ValidationError{Fields: []apperr.FieldError{{Field: "trackingNumber", Message: "is required"}}}
	}
	return h.transition(ctx, cmd.OrderID, func(o *order.Order) error {
		return o.AssignTracking(number, h.now())
	})
}

// CancelOrder lets the owner or an admin cancel an order that has not
// shipped yet.
func (h *Handler) CancelOrder(ctx context.Context, cmd CancelOrder, actor *Actor) (*order.Order, error) {
	if _, err := h.GetOrder(ctx, cmd.OrderID, actor); err != nil {
		return nil, err
	}
	note := strings.TrimSpace(cmd.Reason)
	if note == "" {
		note = "Cancelled by customer"
		if actor != nil && actor.Admin {
			note = "Cancelled by admin"
		}
	}
	return h.transition(ctx, cmd.OrderID, func(o *order.Order) error {
		return o.Transition(order.StatusCancelled, note, h.now())
	})
}

// GetOrder returns an order its owner or an admin may see.
func (h *Handler) GetOrder(ctx context.Context, id string, actor *Actor) (*order.Order, error) {
	o, err := h.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, apperr.ErrForbidden
	}
	if !actor.Admin && (o.UserID == "" || o.UserID != actor.UserID) {
		return nil, apperr.ErrForbidden
	}
	return o, nil
}

// transition applies change under optimistic concurrency. Stock owed back
// is claimed in the same write and restored after it commits.
func (h *Handler) transition(ctx context.Context, id string, change func(o *order.Order) error) (*order.Order, error) {
	var owed []inventory.Line
	o, err := order.Mutate(ctx, h.orders, order.ByID(h.orders, id), func(o *order.Order) (bool, error) {
		if err := change(o); err != nil {
			return false, err
		}
		owed = nil
		if s := o.Status(); s == order.StatusCancelled || s == order.StatusRefunded {
			owed = inventory.ClaimRelease(o)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if len(owed) > 0 {
		if err := h.ledger.Restore(ctx, o.OrderNumber, owed); err != nil {
			h.log.Error("failed to restore stock", zap.String("order_number", o.OrderNumber), zap.Error(err))
		}
	}
	h.log.Info("order updated",
		zap.String("order_id", o.ID),
		zap.String("status", string(o.Status())),
		zap.String("tracking_number", o.TrackingNumber))
	h.publish(ctx, o)
	return o, nil
}

func (h *Handler) publish(ctx context.Context, o *order.Order) {
	if err := order.PublishChanges(ctx, h.publisher, o, h.now()); err != nil {
		h.log.Warn("failed to publish order events", zap.String("order_id", o.ID), zap.Error(err))
	}
}
