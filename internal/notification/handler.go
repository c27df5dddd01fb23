package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/ec-order-engine/internal/domain/order"
	"github.com/example/ec-order-engine/internal/email"
	"github.com/example/ec-order-engine/internal/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Mailer is the subset of email.Service the handler needs.
type Mailer interface {
	SendOrderConfirmation(to, orderNumber, currency string, total decimal.Decimal, items []email.OrderItem) error
	SendStatusUpdate(to, orderNumber, status, note string) error
}

// Handler turns order lifecycle events into customer emails.
type Handler struct {
	mailer Mailer
	log    *zap.Logger
}

// NewHandler creates a new notification handler
func NewHandler(mailer Mailer) *Handler {
	return &Handler{mailer: mailer, log: logger.Named("notifier")}
}

// HandleEvent processes one message from the order topic. Messages that
// are not order envelopes are skipped.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var env order.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	switch env.EventType {
	case order.EventOrderPlaced:
		var e order.OrderPlaced
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return fmt.Errorf("decode %s: %w", env.EventType, err)
		}
		return h.handleOrderPlaced(e)
	case order.EventOrderStatusChanged:
		var e order.OrderStatusChanged
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return fmt.Errorf("decode %s: %w", env.EventType, err)
		}
		return h.handleStatusChanged(e)
	}
	return nil
}

func (h *Handler) handleOrderPlaced(e order.OrderPlaced) error {
	if e.ContactEmail == "" {
		h.log.Warn("no contact email for order", zap.String("order_number", e.OrderNumber))
		return nil
	}

	items := make([]email.OrderItem, len(e.Items))
	for i, item := range e.Items {
		items[i] = email.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
	}

	if err := h.mailer.SendOrderConfirmation(e.ContactEmail, e.OrderNumber, e.Currency, e.TotalPrice, items); err != nil {
		return fmt.Errorf("send confirmation for %s: %w", e.OrderNumber, err)
	}
	h.log.Info("order confirmation sent", zap.String("order_number", e.OrderNumber))
	return nil
}

func (h *Handler) handleStatusChanged(e order.OrderStatusChanged) error {
	if e.ContactEmail == "" || e.To == order.StatusPending {
		return nil
	}
	if err := h.mailer.SendStatusUpdate(e.ContactEmail, e.OrderNumber, string(e.To), e.Note); err != nil {
		return fmt.Errorf("send status update for %s: %w", e.OrderNumber, err)
	}
	h.log.Info("status update sent", zap.String("order_number", e.OrderNumber), zap.String("status", string(e.To)))
	return nil
}
