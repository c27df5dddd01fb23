package payment

import (
	"encoding/json"
	"fmt"

	"github.com/example/ec-order-engine/internal/apperr"
)

// Webhook event types the engine reacts to.
const (
	EventPaymentAuthorized = "payment.authorized"
	EventPaymentCaptured   = "payment.captured"
	EventPaymentFailed     = "payment.failed"
	EventOrderPaid         = "order.paid"
)

// WebhookEvent is a decoded gateway notification.
type WebhookEvent struct {
	Event     string
	CreatedAt int64
	Payment   *Payment
	Order     *RemoteOrder
}

// GatewayOrderID returns the gateway order the event refers to.
func (e *WebhookEvent) GatewayOrderID() string {
	if e.Payment != nil && e.Payment.OrderID != "" {
		return e.Payment.OrderID
	}
	if e.Order != nil {
		return e.Order.ID
	}
	return ""
}

// GatewayPaymentID returns the payment the event refers to, if any.
func (e *WebhookEvent) GatewayPaymentID() string {
	if e.Payment != nil {
		return e.Payment.ID
	}
	return ""
}

type webhookBody struct {
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Payment *struct {
			Entity Payment `json:"entity"`
		} `json:"payment"`
		Order *struct {
			Entity RemoteOrder `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// ParseWebhook decodes a webhook body. Call it only after the signature
// over the same bytes has been verified.
func ParseWebhook(raw []byte) (*WebhookEvent, error) {
	var body webhookBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("%w: malformed webhook body: %v", apperr.ErrValidation, err)
	}
	if body.Event == "" {
		return nil, fmt.Errorf("%w: webhook event type missing", apperr.ErrValidation)
	}
	ev := &WebhookEvent{Event: body.Event, CreatedAt: body.CreatedAt}
	if body.Payload.Payment != nil {
		p := body.Payload.Payment.Entity
		ev.Payment = &p
	}
	if body.Payload.Order != nil {
		o := body.Payload.Order.Entity
		ev.Order = &o
	}
	return ev, nil
}
