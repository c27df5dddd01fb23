// Package reconciliation applies payment outcomes reported by the checkout
// client and by gateway webhooks to stored orders. Both paths share one
// idempotent update; gateway state is always re-read before it is trusted.
package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/ec-order-engine/internal/apperr"
	"github.com/example/ec-order-engine/internal/domain/inventory"
	"github.com/example/ec-order-engine/internal/domain/order"
	"github.com/example/ec-order-engine/internal/logger"
	"github.com/example/ec-order-engine/internal/payment"
	"go.uber.org/zap"
)

// Verifier checks gateway signatures.
type Verifier interface {
	VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool
	VerifyWebhookSignature(rawBody []byte, signature string) bool
}

// PaymentReader fetches authoritative payment state from the gateway.
type PaymentReader interface {
	FetchPayment(ctx context.Context, paymentID string) (*payment.Payment, error)
	FetchOrder(ctx context.Context, gatewayOrderID string) (*payment.RemoteOrder, error)
	FetchOrderPayments(ctx context.Context, gatewayOrderID string) ([]payment.Payment, error)
}

// Deduper remembers webhook deliveries for a bounded window.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// Event is one payment notification, from either input channel.
type Event struct {
	ID               string
	Type             string
	GatewayOrderID   string
	GatewayPaymentID string
	// Expected is the payment state the sender claims. It is only used to
	// short-circuit replays; the fetched payment decides the outcome.
	Expected order.PaymentStatus
	// FromClient marks the signed checkout callback.
	FromClient bool
}

// VerifyPayment is the checkout client's callback after paying.
type VerifyPayment struct {
	GatewayOrderID   string `json:"gatewayOrderId"`
	GatewayPaymentID string `json:"gatewayPaymentId"`
	Signature        string `json:"signature"`
	OrderID          string `json:"orderId"`
}

type Handler struct {
	orders    order.Repository
	ledger    *inventory.Ledger
	verifier  Verifier
	payments  PaymentReader
	dedupe    Deduper
	publisher order.Publisher
	log       *zap.Logger
	now       func() time.Time
}

func NewHandler(
	orders order.Repository,
	ledger *inventory.Ledger,
	verifier Verifier,
	payments PaymentReader,
	dedupe Deduper,
	publisher order.Publisher,
) *Handler {
	if publisher == nil {
		publisher = order.NopPublisher{}
	}
	return &Handler{
		orders:    orders,
		ledger:    ledger,
		verifier:  verifier,
		payments:  payments,
		dedupe:    dedupe,
		publisher: publisher,
		log:       logger.Named("reconciliation"),
		now:       time.Now,
	}
}

// VerifyClientPayment handles the signed callback the checkout widget
// returns. A bad signature is rejected before any lookup.
func (h *Handler) VerifyClientPayment(ctx context.Context, req VerifyPayment) (*order.Order, error) {
	if !h.verifier.VerifyPaymentSignature(req.GatewayOrderID, req.GatewayPaymentID, req.Signature) {
		logger.Security("invalid_payment_signature",
			zap.String("gateway_order_id", req.GatewayOrderID),
			zap.String("gateway_payment_id", req.GatewayPaymentID),
			zap.String("order_id", req.OrderID))
		return nil, apperr.ErrInvalidSignature
	}

	return h.apply(ctx, Event{
		ID:               "verify:" + req.GatewayPaymentID,
		Type:             "client.verify",
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Expected:         order.PaymentCaptured,
		FromClient:       true,
	}, req.OrderID)
}

// HandleWebhook verifies and applies one gateway notification. eventID is
// the delivery id header; when absent an id is derived from the payload.
// Only a bad signature, an unknown order or a transient failure is
// returned. Signed events that can never apply are logged, remembered and
// acknowledged.
func (h *Handler) HandleWebhook(ctx context.Context, raw []byte, signature, eventID string) error {
	eventID = strings.TrimSpace(eventID)
	if !h.verifier.VerifyWebhookSignature(raw, signature) {
		logger.Security("invalid_webhook_signature",
			zap.String("event_id", eventID),
			zap.Int("body_bytes", len(raw)))
		return apperr.ErrInvalidSignature
	}

	err := h.handleWebhook(ctx, raw, eventID)
	if errors.Is(err, apperr.ErrAmountMismatch) || errors.Is(err, apperr.ErrValidation) {
		logger.Security("webhook_rejected",
			zap.String("event_id", eventID),
			zap.Error(err))
		if eventID != "" {
			h.mark(ctx, eventID)
		}
		return nil
	}
	return err
}

func (h *Handler) handleWebhook(ctx context.Context, raw []byte, eventID string) error {
	wh, err := payment.ParseWebhook(raw)
	if err != nil {
		return err
	}

	ev := Event{
		ID:               eventID,
		Type:             wh.Event,
		GatewayOrderID:   wh.GatewayOrderID(),
		GatewayPaymentID: wh.GatewayPaymentID(),
	}
	if ev.ID == "" {
		ev.ID = fmt.Sprintf("%s:%s:%s", wh.Event, ev.GatewayOrderID, ev.GatewayPaymentID)
	}
	log := h.log.With(zap.String("event_id", ev.ID), zap.String("event", ev.Type), zap.String("gateway_order_id", ev.GatewayOrderID))

	if seen, err := h.dedupe.Seen(ctx, ev.ID); err != nil {
		log.Warn("dedupe lookup failed, processing anyway", zap.Error(err))
	} else if seen {
		log.Info("duplicate webhook delivery ignored")
		return nil
	}

	switch wh.Event {
	case payment.EventPaymentCaptured, payment.EventOrderPaid:
		ev.Expected = order.PaymentCaptured
	case payment.EventPaymentFailed:
		ev.Expected = order.PaymentFailed
	case payment.EventPaymentAuthorized:
		ev.Expected = order.PaymentAuthorized
	default:
		log.Info("ignoring unhandled webhook event")
		h.mark(ctx, ev.ID)
		return nil
	}
	if ev.GatewayOrderID == "" {
		return fmt.Errorf("%w: webhook %s carries no order id", apperr.ErrValidation, wh.Event)
	}

	if _, err := h.apply(ctx, ev, ""); err != nil {
		if errors.Is(err, apperr.ErrAmountMismatch) {
			h.mark(ctx, ev.ID)
		}
		return err
	}
	h.mark(ctx, ev.ID)
	return nil
}

// Reconcile re-reads every payment attempt for a gateway order and applies
// the most advanced one. It reports whether a payment was found.
func (h *Handler) Reconcile(ctx context.Context, gatewayOrderID string) (*order.Order, bool, error) {
	attempts, err := h.payments.FetchOrderPayments(ctx, gatewayOrderID)
	if err != nil {
		return nil, false, err
	}
	best := pickPayment(attempts)
	if best == nil {
		return nil, false, nil
	}
	o, err := h.apply(ctx, Event{
		ID:               "reconcile:" + best.ID + ":" + best.Status,
		Type:             "reconcile",
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: best.ID,
		Expected:         paymentTarget(best.Status),
	}, "")
	return o, true, err
}

// apply is the shared update path: look up the order, skip replays, fetch
// the authoritative payment, then drive the state machines.
func (h *Handler) apply(ctx context.Context, ev Event, expectOrderID string) (*order.Order, error) {
	log := h.log.With(zap.String("event_id", ev.ID), zap.String("gateway_order_id", ev.GatewayOrderID))

	current, err := h.orders.GetByGatewayOrderID(ctx, ev.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	if expectOrderID != "" && current.ID != expectOrderID {
		logger.Security("payment_order_mismatch",
			zap.String("gateway_order_id", ev.GatewayOrderID),
			zap.String("claimed_order_id", expectOrderID),
			zap.String("order_id", current.ID))
		return nil, fmt.Errorf("%w: gateway order belongs to another order", apperr.ErrAmountMismatch)
	}
	if alreadyApplied(current, ev) {
		log.Info("payment event already applied", zap.String("payment_status", string(current.Payment.Status)))
		return current, nil
	}

	p, err := h.fetch(ctx, ev)
	if err != nil {
		return nil, err
	}
	mismatch := checkPayment(current, ev, p)
	if mismatch == nil && ev.Type == payment.EventOrderPaid {
		ro, err := h.payments.FetchOrder(ctx, ev.GatewayOrderID)
		if err != nil {
			return nil, err
		}
		mismatch = checkRemoteOrder(current, ro)
	}
	if mismatch != nil {
		logger.Security("payment_amount_mismatch",
			zap.String("order_id", current.ID),
			zap.String("gateway_payment_id", p.ID),
			zap.Int64("expected_minor", payment.ToMinorUnits(current.TotalPrice)),
			zap.Int64("paid_minor", p.Amount),
			zap.String("currency", p.Currency),
			zap.Error(mismatch))
	}

	at := h.now()
	var owed []inventory.Line
	o, err := order.Mutate(ctx, h.orders, order.ByGatewayOrderID(h.orders, ev.GatewayOrderID), func(o *order.Order) (bool, error) {
		owed = nil
		if o.HasProcessedEvent(ev.ID) {
			return false, nil
		}

		target := paymentTarget(p.Status)
		if !supersedes(o.Payment, p.ID, target) {
			// An older attempt must not replace the one the order settled on.
			log.Info("stale payment attempt ignored",
				zap.String("gateway_payment_id", p.ID),
				zap.String("fetched", p.Status),
				zap.String("recorded_payment_id", o.Payment.GatewayPaymentID),
				zap.String("payment_status", string(o.Payment.Status)))
			if mismatch != nil {
				return false, nil
			}
			o.RecordEvent(ev.ID)
			return true, nil
		}

		// A mismatched payment still leaves its snapshot for audit.
		prev := o.Payment
		o.Payment.Detail = p.Snapshot(at)
		if mismatch != nil {
			return true, nil
		}
		o.RecordEvent(ev.ID)

		o.Payment.GatewayPaymentID = p.ID
		if ev.FromClient {
			o.Payment.SignatureVerified = true
		}

		if target == "" {
			return true, nil
		}
		if _, err := o.ApplyPayment(target, at); err != nil {
			if errors.Is(err, apperr.ErrIllegalTransition) {
				log.Info("stale payment event", zap.String("payment_status", string(o.Payment.Status)), zap.String("fetched", p.Status))
				o.Payment.GatewayPaymentID = prev.GatewayPaymentID
				o.Payment.SignatureVerified = prev.SignatureVerified
				o.Payment.Detail = prev.Detail
				return true, nil
			}
			return false, err
		}

		switch target {
		case order.PaymentCaptured:
			switch o.Status() {
			case order.StatusPending:
				if err := o.Transition(order.StatusProcessing, "Payment captured", at); err != nil {
					return false, err
				}
			case order.StatusCancelled:
				log.Error("payment captured for a cancelled order, manual refund required",
					zap.String("order_id", o.ID), zap.String("gateway_payment_id", p.ID))
			}
		case order.PaymentFailed:
			if o.Status() == order.StatusPending {
				note := "Payment failed"
				if p.ErrorDescription != "" {
					note += ": " + p.ErrorDescription
				}
				if err := o.Transition(order.StatusCancelled, note, at); err != nil {
					return false, err
				}
				owed = inventory.ClaimRelease(o)
			}
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if len(owed) > 0 {
		if err := h.ledger.Restore(ctx, o.OrderNumber, owed); err != nil {
			log.Error("failed to restore stock after payment failure", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
	if err := order.PublishChanges(ctx, h.publisher, o, at); err != nil {
		log.Warn("failed to publish order events", zap.String("order_id", o.ID), zap.Error(err))
	}

	if mismatch != nil {
		return nil, mismatch
	}
	log.Info("payment reconciled",
		zap.String("order_id", o.ID),
		zap.String("status", string(o.Status())),
		zap.String("payment_status", string(o.Payment.Status)))
	return o, nil
}

func (h *Handler) fetch(ctx context.Context, ev Event) (*payment.Payment, error) {
	if ev.GatewayPaymentID != "" {
		return h.payments.FetchPayment(ctx, ev.GatewayPaymentID)
	}
	attempts, err := h.payments.FetchOrderPayments(ctx, ev.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	best := pickPayment(attempts)
	if best == nil {
		return nil, fmt.Errorf("%w: no payments recorded for %s", apperr.ErrAmountMismatch, ev.GatewayOrderID)
	}
	return best, nil
}

func (h *Handler) mark(ctx context.Context, eventID string) {
	if err := h.dedupe.Mark(ctx, eventID); err != nil {
		h.log.Warn("failed to record webhook delivery", zap.String("event_id", eventID), zap.Error(err))
	}
}

// alreadyApplied reports a replayed event id, or an event whose claimed
// outcome the order already reflects.
func alreadyApplied(o *order.Order, ev Event) bool {
	if o.HasProcessedEvent(ev.ID) {
		return true
	}
	if ev.Expected == "" || o.Payment.Status != ev.Expected {
		return false
	}
	return ev.GatewayPaymentID == "" || o.Payment.GatewayPaymentID == "" || o.Payment.GatewayPaymentID == ev.GatewayPaymentID
}

// checkPayment makes sure the fetched payment belongs to the order and
// covers its total.
func checkPayment(o *order.Order, ev Event, p *payment.Payment) error {
	switch {
	case p.OrderID != ev.GatewayOrderID:
		return fmt.Errorf("%w: payment %s belongs to gateway order %s", apperr.ErrAmountMismatch, p.ID, p.OrderID)
	case !strings.EqualFold(p.Currency, o.Currency):
		return fmt.Errorf("%w: paid in %s, order is in %s", apperr.ErrAmountMismatch, p.Currency, o.Currency)
	case p.Amount != payment.ToMinorUnits(o.TotalPrice):
		return fmt.Errorf("%w: paid %s, order total is %s", apperr.ErrAmountMismatch,
			payment.ToMajorUnits(p.Amount).StringFixed(2), o.TotalPrice.StringFixed(2))
	}
	return nil
}

// checkRemoteOrder confirms the gateway order itself records the full
// amount as paid.
func checkRemoteOrder(o *order.Order, ro *payment.RemoteOrder) error {
	switch {
	case !strings.EqualFold(ro.Currency, o.Currency):
		return fmt.Errorf("%w: gateway order is in %s, order is in %s", apperr.ErrAmountMismatch, ro.Currency, o.Currency)
	case ro.AmountPaid != payment.ToMinorUnits(o.TotalPrice):
		return fmt.Errorf("%w: gateway order paid %s, order total is %s", apperr.ErrAmountMismatch,
			payment.ToMajorUnits(ro.AmountPaid).StringFixed(2), o.TotalPrice.StringFixed(2))
	}
	return nil
}

// supersedes reports whether attempt paymentID, now in target, may become
// the order's recorded payment. A different attempt replaces the recorded
// one when it got further, or as far while the order is still unsettled.
// Once captured, the first captured attempt stays.
func supersedes(cur order.PaymentInfo, paymentID string, target order.PaymentStatus) bool {
	if cur.GatewayPaymentID == "" || cur.GatewayPaymentID == paymentID {
		return true
	}
	next, recorded := paymentRank(target), paymentRank(cur.Status)
	return next > recorded || (next == recorded && recorded < paymentRank(order.PaymentCaptured))
}

func paymentRank(s order.PaymentStatus) int {
	switch s {
	case order.PaymentFailed:
		return 1
	case order.PaymentAuthorized:
		return 2
	case order.PaymentCaptured:
		return 3
	case order.PaymentRefunded:
		return 4
	}
	return 0
}

func paymentTarget(gatewayStatus string) order.PaymentStatus {
	switch gatewayStatus {
	case payment.StatusCaptured:
		return order.PaymentCaptured
	case payment.StatusAuthorized:
		return order.PaymentAuthorized
	case payment.StatusFailed:
		return order.PaymentFailed
	}
	return ""
}

// pickPayment prefers captured, then authorized, then failed attempts.
func pickPayment(attempts []payment.Payment) *payment.Payment {
	rank := map[string]int{payment.StatusCaptured: 3, payment.StatusAuthorized: 2, payment.StatusFailed: 1}
	var best *payment.Payment
	for i := range attempts {
		p := &attempts[i]
		if rank[p.Status] == 0 {
			continue
		}
		if best == nil || rank[p.Status] > rank[best.Status] {
			best = p
		}
	}
	return best
}
