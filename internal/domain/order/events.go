package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventPaymentRecorded    = "PaymentRecorded"
)

// DomainEvent is raised by the aggregate and published after it is stored.
type DomainEvent interface {
	EventType() string
}

type OrderPlaced struct {
	OrderID       string          `json:"orderId"`
	OrderNumber   string          `json:"orderNumber"`
	UserID        string          `json:"userId,omitempty"`
	ContactEmail  string          `json:"contactEmail,omitempty"`
	IsGuestOrder  bool            `json:"isGuestOrder"`
	Items         []LineItem      `json:"items"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	Currency      string          `json:"currency"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	PlacedAt      time.Time       `json:"placedAt"`
}

type OrderStatusChanged struct {
	OrderID      string    `json:"orderId"`
	OrderNumber  string    `json:"orderNumber"`
	ContactEmail string    `json:"contactEmail,omitempty"`
	From         Status    `json:"from"`
	To           Status    `json:"to"`
	Note         string    `json:"note,omitempty"`
	ChangedAt    time.Time `json:"changedAt"`
}

type PaymentRecorded struct {
	OrderID          string          `json:"orderId"`
	OrderNumber      string          `json:"orderNumber"`
	ContactEmail     string          `json:"contactEmail,omitempty"`
	GatewayOrderID   string          `json:"gatewayOrderId,omitempty"`
	GatewayPaymentID string          `json:"gatewayPaymentId,omitempty"`
	Status           PaymentStatus   `json:"status"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	RecordedAt       time.Time       `json:"recordedAt"`
}

func (OrderPlaced) EventType() string        { return EventOrderPlaced }
func (OrderStatusChanged) EventType() string { return EventOrderStatusChanged }
func (PaymentRecorded) EventType() string    { return EventPaymentRecorded }

// Envelope is the wire form of a domain event on the order topic.
type Envelope struct {
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	OrderID    string          `json:"orderId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// NewEnvelope wraps a domain event for publishing.
func NewEnvelope(orderID string, event DomainEvent, at time.Time) (Envelope, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:    uuid.New().String(),
		EventType:  event.EventType(),
		OrderID:    orderID,
		OccurredAt: at,
		Data:       data,
	}, nil
}

// Publisher delivers events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

// PublishChanges sends the events o raised since it was loaded, keyed by
// order id so one order's events stay in sequence. Every event is attempted.
func PublishChanges(ctx context.Context, publisher Publisher, o *Order, at time.Time) error {
	var errs []error
	for _, e := range o.PullEvents() {
		env, err := NewEnvelope(o.ID, e, at)
		if err == nil {
			err = publisher.Publish(ctx, o.ID, env)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", e.EventType(), err))
		}
	}
	return errors.Join(errs...)
}
