package reconciliation_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/example/ec-order-engine/internal/apperr"
	"github.com/example/ec-order-engine/internal/command"
	"github.com/example/ec-order-engine/internal/domain/catalog"
	"github.com/example/ec-order-engine/internal/domain/inventory"
	"github.com/example/ec-order-engine/internal/domain/order"
	"github.com/example/ec-order-engine/internal/infrastructure/cache"
	"github.com/example/ec-order-engine/internal/infrastructure/store"
	"github.com/example/ec-order-engine/internal/infrastructure/store/mocks"
	"github.com/example/ec-order-engine/internal/payment"
	"github.com/example/ec-order-engine/internal/reconciliation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	keySecret     = "key_secret"
	webhookSecret = "whsec_test"
)

var lamp = catalog.Product{
	ID:             "prod-lamp",
	Name:           "Desk Lamp",
	Price:          decimal.RequireFromString("1200.00"),
	TracksQuantity: true,
	Quantity:       50,
}

type fixture struct {
	store     *store.MemoryStore
	gateway   *mocks.MockGateway
	publisher *mocks.MockPublisher
	redis     *miniredis.Miniredis
	handler   *reconciliation.Handler
	orders    *command.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	s.PutProduct(lamp)
	gw := mocks.NewMockGateway()
	pub := mocks.NewMockPublisher()
	mr := miniredis.RunT(t)
	dedupe, err := cache.NewRedisDeduper("redis://"+mr.Addr(), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dedupe.Close() })

	verifier := payment.NewClient(payment.Config{KeySecret: keySecret, WebhookSecret: webhookSecret})
	ledger := inventory.NewLedger(s, pub)
	return &fixture{
		store:     s,
		gateway:   gw,
		publisher: pub,
		redis:     mr,
		handler:   reconciliation.NewHandler(s, ledger, verifier, gw, dedupe, pub),
		orders:    command.NewHandler(command.NewValidator(s), ledger, s, gw, pub, "INR"),
	}
}

// placeOnline creates an online order for two lamps and returns it.
func (f *fixture) placeOnline(t *testing.T) *order.Order {
	t.Helper()
	po, err := f.orders.CreatePaymentOrder(context.Background(), command.CreatePaymentOrder{
		Amount:   decimal.RequireFromString("2400.00"),
		Currency: "INR",
		Items:    []command.OrderItem{{ProductID: lamp.ID, Price: lamp.Price, Quantity: 2}},
		ShippingAddress: order.ShippingAddress{
			Address: "4 Park Street", City: "Kolkata", PostalCode: "700016", Country: "IN",
		},
	}, &command.Actor{UserID: "user-9", Email: "u9@example.com"})
	require.NoError(t, err)
	require.Equal(t, 48, f.stock())
	return po.Order
}

func (f *fixture) stock() int {
	return f.store.Stock(inventory.StockRef{ProductID: lamp.ID})
}

func (f *fixture) reload(t *testing.T, id string) *order.Order {
	t.Helper()
	o, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return o
}

func gatewayPayment(o *order.Order, id, status string) payment.Payment {
	p := payment.Payment{
		ID:       id,
		Entity:   "payment",
		OrderID:  o.Payment.GatewayOrderID,
		Amount:   payment.ToMinorUnits(o.TotalPrice),
		Currency: "INR",
		Status:   status,
		Method:   "upi",
		Captured: status == payment.StatusCaptured,
	}
	if status == payment.StatusFailed {
		p.ErrorDescription = "Payment was declined by the bank"
	}
	return p
}

func webhookBody(t *testing.T, event string, p payment.Payment) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"entity": "event",
		"event":  event,
		"payload": map[string]any{
			"payment": map[string]any{"entity": p},
		},
		"created_at": time.Now().Unix(),
	})
	require.NoError(t, err)
	return body
}

// ============================================
// Client Verification Tests
// ============================================

func TestVerifyClientPayment_Captured(t *testing.T) {
	f := newFixture(t)
	o := f.placeOnline(t)
	p := gatewayPayment(o, "pay_001", payment.StatusCaptured)
	f.gateway.AddPayment(p)

	got, err := f.handler.VerifyClientPayment(context.Background(), reconciliation.VerifyPayment{
		GatewayOrderID:   o.Payment.GatewayOrderID,
		GatewayPaymentID: p.ID,
		Signature:        payment.Sign(keySecret, []byte(o.Payment.GatewayOrderID+"|"+p.ID)),
		OrderID:          o.ID,
	})

	require.NoError(t, err)
	assert.Equal(t, order.StatusProcessing, got.Status())
	assert.True(t, got.IsPaid)
	assert.NotNil(t, got.PaidAt)
	assert.True(t, got.Payment.SignatureVerified)
	assert.Equal(t, "pay_001", got.Payment.GatewayPaymentID)
	require.NotNil(t, got.Payment.Detail)
	assert.Equal(t, "upi", got.Payment.Detail.Method)
	assert.True(t, got.Payment.Detail.Amount.Equal(decimal.RequireFromString("2400")))

	stored := f.reload(t, o.ID)
	assert.Equal(t, order.StatusProcessing, stored.Status())
	assert.Equal(t, 48, f.stock())
}

func TestVerifyClientPayment_BadSignature(t *testing.T) {
	f := newFixture(t)
	o := f.placeOnline(t)

	_, err := f.handler.VerifyClientPayment(context.Background(), reconciliation.VerifyPayment{
		GatewayOrderID:   o.Payment.GatewayOrderID,
		GatewayPaymentID: "pay_001",
		Signature:        "deadbeef",
		OrderID:          o.ID,
	})

	assert.ErrorIs(t, err, apperr.ErrInvalidSignature)
	assert.Empty(t, f.gateway.FetchCalls, "no lookup after a bad signature")
	assert.Equal(t, order.PaymentUnpaid, f.reload(t, o.ID).Payment.Status)
}

func TestVerifyClientPayment_AmountMismatch(t *testing.T) {
	f := newFixture(t)
	o := f.placeOnline(t)
	p := gatewayPayment(o, "pay_001", payment.StatusCaptured)
	p.Amount = 100
	f.gateway.AddPayment(p)

	_, err := f.handler.VerifyClientPayment(context.Background(), reconciliation.VerifyPayment{
		GatewayOrderID:   o.Payment.GatewayOrderID,
		GatewayPaymentID: p.ID,
		Signature:        payment.Sign(keySecret, []byte(o.Payment.GatewayOrderID+"|"+p.ID)),
	})

	assert.ErrorIs(t, err, apperr.ErrAmountMismatch)
	stored := f.reload(t, o.ID)
	assert.False(t, stored.IsPaid)
	assert.Equal(t, order.StatusPending, stored.Status())
	require.NotNil(t, stored.Payment.Detail, "snapshot is kept for audit")
	assert.True(t, stored.Payment.Detail.Amount.Equal(decimal.RequireFromString("1")))
}

func TestVerifyClientPayment_WrongOrder(t *testing.T) {
	f := newFixture(t)
	o := f.placeOnline(t)

	_, err := f.handler.VerifyClientPayment(context.Background(), reconciliation.VerifyPayment{
		GatewayOrderID:   o.Payment.GatewayOrderID,
		GatewayPaymentID: "pay_001",
		Signature:        payment.Sign(keySecret, []byte(o.Payment.GatewayOrderID+"|pay_001")),
		OrderID:          "someone-elses-order",
	})

	assert.ErrorIs(t, err, apperr.ErrAmountMismatch)
}

func TestVerifyClientPayment_UnknownGatewayOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.handler.VerifyClientPayment(context.Background(), reconciliation.VerifyPayment{
		GatewayOrderID:   "order_unknown",
		GatewayPaymentID: "pay_001",
		Signature:        payment.Sign(keySecret, []byte("order_unknown|pay_001")),
	})

	assert.ErrorIs(t, err, apperr.ErrOrderNotFound)
}

// ============================================
// Webhook Tests
// ============================================

func TestHandleWebhook_CaptureIsIdempotent(t *testing.T) {
	f := newFixture(t)
	o := f.placeOnline(t)
	p := gatewayPayment(o, "pay_001", payment.StatusCaptured)
	f.gateway.AddPayment(p)
	body := webhookBody(t, payment.EventPaymentCaptured, p)
	sig := payment.Sign(webhookSecret, body)

	require.NoError(t, f.handler.HandleWebhook(context.Background(), body, sig, "evt_1"))
	require.NoError(t, f.handler.HandleWebhook(context.Background(), body, sig, "evt_1"))
	require.NoError(t, f.handler.HandleWebhook(context.Background(), body, sig, "evt_2"))

	stored := f.reload(t, o.ID)
	assert.True(t, stored.IsPaid)
	assert.Equal(t, order.StatusProcessing, stored.Status())
	assert.Len(t, stored.History(), 2, "one entry for placement, one for the capture")
	assert.Len(t, f.gateway.FetchCalls, 1, "replays never reach the gateway")
	assert.Equal(t, 48, f.stock())
	assert.True(t, f.redis.Exists("webhook:event:evt_1"))

	var changes int
	for _, et := range f.publisher.EventTypes() {
		if et == order.EventOrderStatusChanged {
			changes++
		}
	}
	assert.Equal(t, 1, changes)
}

func TestHandleWebhook_ClientVerifyThenWebhook(t *testing.T) {
	f := newFixture(t)
	o := f.placeOnline(t)
	p := gatewayPayment(o, "pay_001", payment.StatusCaptured)
	f.gateway.AddPayment(p)

	_, err := f.handler.VerifyClientPayment(context.Background(), reconciliation.VerifyPayment{
		GatewayOrderID:   o.Payment.GatewayOrderID,
		GatewayPaymentID: p.ID,
		Signature:        payment.Sign(keySecret, []byte(o.Payment.GatewayOrderID+"|"+p.ID)),
	})
	require.NoError(t, err)

	body := webhookBody(t, payment.EventPaymentCaptured, p)
	require.NoError(t, f.handler.HandleWebhook(context.Background(), body, payment.Sign(webhookSecret, body), "evt_9"))

	assert.Len(t, f.reload(t, o.ID).History(), 2)
}

func TestHandleWebhook_TamperedBody(t *testing.T) {
	f := newFixture(t)
	o := f.placeOnline(t)
	p := gatewayPayment(o, "pay_001", payment.StatusCaptured)
	f.gateway.AddPayment(p)
	body := webhookBody(t, payment.EventPaymentCaptured, p)
	sig := payment.Sign(webhookSecret, body)

	tampered := append([]byte(nil), body...)
	tampered[len(tampered)-2] = ' '

	err := f.handler.HandleWebhook(context.Background(), tampered, sig, "evt_1")
	assert.ErrorIs(t, err, apperr.ErrInvalidSignature)

	err = f.handler.HandleWebhook(context.Background(), body, "wrong", "evt_1")
	assert.ErrorIs(t, err, apperr.ErrInvalidSignature)

	stored := f.reload(t, o.ID)
	assert.Equal(t, order.StatusPending, stored.Status())
	assert.False(t, stored.IsPaid)
	assert.Empty(t, f.gateway.FetchCalls)
	assert.False(t, f.redis.Exists("webhook:event:evt_1"))
}

func TestHandleWebhook_PaymentFailureRestoresStock(t *testing.T) {
	f := newFixture(t)
	o := f.placeOnline(t)
	p := gatewayPayment(o, "pay_002", payment.StatusFailed)
	f.gateway.AddPayment(p)
	body := webhookBody(t, payment.EventPaymentFailed, p)

	require.NoError(t, f.handler.HandleWebhook(context.Background(), body, payment.Sign(webhookSecret, body), "evt_fail"))

	stored := f.reload(t, o.ID)
	assert.Equal(t, order.StatusCancelled, stored.Status())
	assert.Equal(t, order.PaymentFailed, stored.Payment.Status)
	assert.True(t, stored.StockReleased)
	assert.Equal(t, "Payment failed: Payment was declined by the bank", stored.History()[1].Note)
	assert.Equal(t, 50, f.stock())

	// A second failure for another attempt must not restock again.
	p2 := gatewayPayment(o, "pay_003", payment.StatusFailed)
	f.gateway.AddPayment(p2)
	body2 := webhookBody(t, payment.EventPaymentFailed, p2)
	require.NoError(t, f.handler.HandleWebhook(context.Background(), body2, payment.Sign(webhookSecret, body2), "evt_fail_2"))
	assert.Equal(t, 50, f.stock())
}

func TestHandleWebhook_AuthorizedOnlyMovesPayment(t *testing.T) {
	f := newFixture(t)
	o := f.placeOnline(t)
	p := gatewayPayment(o, "pay_004", payment.StatusAuthorized)
	f.gateway.AddPayment(p)
	body := webhookBody(t, payment.EventPaymentAuthorized, p)

	require.NoError(t, f.handler.HandleWebhook(context.Background(), body, payment.Sign(webhookSecret, body), "evt_auth"))

	stored := f.reload(t, o.ID)
	assert.Equal(t, order.PaymentAuthorized, stored.Payment.Status)
	assert.Equal(t, order.StatusPending, stored.Status())
	assert.False(t, stored.IsPaid)
}

func TestHandleWebhook_TrustsFetchedStatusOverPayload(t *testing.T) {
	f := newFixture(t)
	o := f.placeOnline(t)
	f.gateway.AddPayment(gatewayPayment(o, "pay_005", payment.StatusFailed))
	claimed := gatewayPayment(o, "pay_005", payment.StatusCaptured)
	body := webhookBody(t, payment.EventPaymentCaptured, claimed)

	require.NoError(t, f.handler.HandleWebhook(context.Background(), body, payment.Sign(webhookSecret, body), "evt_x"))

	stored := f.reload(t, o.ID)
	assert.False(t, stored.IsPaid)
	assert.Equal(t, order.StatusCancelled, stored.Status())
}

func TestHandleWebhook_UnknownEventAcknowledged(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"event":"refund.processed","payload":{}}`)

	err := f.handler.HandleWebhook(context.Background(), body, payment.Sign(webhookSecret, body), "evt_r")

	assert.NoError(t, err)
	assert.Empty(t, f.gateway.FetchCalls)
}

func TestHandleWebhook_CaptureAfterCancel(t *testing.T) {
	f := newFixture(t)
	o := f.placeOnline(t)
	_, err := f.orders.UpdateStatus(context.Background(), command.UpdateStatus{OrderID: o.ID, Status: "cancelled"})
	require.NoError(t, err)
	require.Equal(t, 50, f.stock())

	p := gatewayPayment(o, "pay_late", payment.StatusCaptured)
	f.gateway.AddPayment(p)
	body := webhookBody(t, payment.EventPaymentCaptured, p)
	require.NoError(t, f.handler.HandleWebhook(context.Background(), body, payment.Sign(webhookSecret, body), "evt_late"))

	stored := f.reload(t, o.ID)
	assert.Equal(t, order.StatusCancelled, stored.Status())
	assert.True(t, stored.IsPaid, "the money arrived and must be refunded by hand")
	assert.Equal(t, 50, f.stock())
}

func TestHandleWebhook_StaleFailureKeepsCapturedAttempt(t *testing.T) {
	f := newFixture(t)
	o := f.placeOnline(t)
	failed := gatewayPayment(o, "pay_A", payment.StatusFailed)
	captured := gatewayPayment(o, "pay_B", payment.StatusCaptured)
	f.gateway.AddPayment(failed)
	f.gateway.AddPayment(captured)

	body := webhookBody(t, payment.EventPaymentCaptured, captured)
	require.NoError(t, f.handler.HandleWebhook(context.Background(), body, payment.Sign(webhookSecret, body), "evt_cap"))

	// The failure for the first attempt is delivered late.
	body = webhookBody(t, payment.EventPaymentFailed, failed)
	require.NoError(t, f.handler.HandleWebhook(context.Background(), body, payment.Sign(webhookSecret, body), "evt_fail"))

	stored := f.reload(t, o.ID)
	assert.Equal(t, order.StatusProcessing, stored.Status())
	assert.Equal(t, order.PaymentCaptured, stored.Payment.Status)
	assert.True(t, stored.IsPaid)
	assert.Equal(t, "pay_B", stored.Payment.GatewayPaymentID)
	require.NotNil(t, stored.Payment.Detail)
	assert.Equal(t, payment.StatusCaptured, stored.Payment.Detail.Status)
	assert.True(t, stored.HasProcessedEvent("evt_fail"))
	assert.True(t, f.redis.Exists("webhook:event:evt_fail"))
	assert.Equal(t, 48, f.stock())
}

func TestHandleWebhook_LaterCaptureReplacesFailedAttempt(t *testing.T) {
	f := newFixture(t)
	o := f.placeOnline(t)
	failed := gatewayPayment(o, "pay_A", payment.StatusFailed)
	captured := gatewayPayment(o, "pay_B", payment.StatusCaptured)
	f.gateway.AddPayment(failed)
	f.gateway.AddPayment(captured)

	body := webhookBody(t, payment.EventPaymentFailed, failed)
	require.NoError(t, f.handler.HandleWebhook(context.Background(), body, payment.Sign(webhookSecret, body), "evt_fail"))
	require.Equal(t, "pay_A", f.reload(t, o.ID).Payment.GatewayPaymentID)

	body = webhookBody(t, payment.EventPaymentCaptured, captured)
	require.NoError(t, f.handler.HandleWebhook(context.Background(), body, payment.Sign(webhookSecret, body), "evt_cap"))

	stored := f.reload(t, o.ID)
	assert.Equal(t, "pay_B", stored.Payment.GatewayPaymentID)
	assert.Equal(t, order.PaymentCaptured, stored.Payment.Status)
	assert.True(t, stored.IsPaid)
	assert.Equal(t, order.StatusCancelled, stored.Status(), "the failure already cancelled the order")
}

func TestHandleWebhook_SecondCaptureKeepsFirst(t *testing.T) {
	f := newFixture(t)
	o := f.placeOnline(t)
	first := gatewayPayment(o, "pay_B", payment.StatusCaptured)
	second := gatewayPayment(o, "pay_C", payment.StatusCaptured)
	f.gateway.AddPayment(first)
	f.gateway.AddPayment(second)

	body := webhookBody(t, payment.EventPaymentCaptured, first)
	require.NoError(t, f.handler.HandleWebhook(context.Background(), body, payment.Sign(webhookSecret, body), "evt_1"))
	body = webhookBody(t, payment.EventPaymentCaptured, second)
	require.NoError(t, f.handler.HandleWebhook(context.Background(), body, payment.Sign(webhookSecret, body), "evt_2"))

	stored := f.reload(t, o.ID)
	assert.Equal(t, "pay_B", stored.Payment.GatewayPaymentID)
	assert.Len(t, stored.History(), 2)
}

func TestHandleWebhook_AmountMismatchAcknowledged(t *testing.T) {
	f := newFixture(t)
	o := f.placeOnline(t)
	p := gatewayPayment(o, "pay_short", payment.StatusCaptured)
	p.Amount = 100
	f.gateway.AddPayment(p)
	body := webhookBody(t, payment.EventPaymentCaptured, p)
	sig := payment.Sign(webhookSecret, body)

	for i := 0; i < 3; i++ {
		assert.NoError(t, f.handler.HandleWebhook(context.Background(), body, sig, "evt_same"))
	}

	stored := f.reload(t, o.ID)
	assert.False(t, stored.IsPaid)
	assert.Equal(t, order.StatusPending, stored.Status())
	require.NotNil(t, stored.Payment.Detail)
	assert.True(t, stored.Payment.Detail.Amount.Equal(decimal.RequireFromString("1")))
	assert.Len(t, f.gateway.FetchCalls, 1, "redeliveries stop at the dedupe window")
	assert.True(t, f.redis.Exists("webhook:event:evt_same"))
}

func TestHandleWebhook_MissingOrderIDAcknowledged(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"event":"payment.captured","payload":{}}`)

	err := f.handler.HandleWebhook(context.Background(), body, payment.Sign(webhookSecret, body), "evt_empty")

	assert.NoError(t, err)
	assert.Empty(t, f.gateway.FetchCalls)
	assert.True(t, f.redis.Exists("webhook:event:evt_empty"))
}

func TestHandleWebhook_UnknownGatewayOrderRetried(t *testing.T) {
	f := newFixture(t)
	p := payment.Payment{ID: "pay_x", OrderID: "order_unknown", Amount: 100, Currency: "INR", Status: payment.StatusCaptured}
	body := webhookBody(t, payment.EventPaymentCaptured, p)

	err := f.handler.HandleWebhook(context.Background(), body, payment.Sign(webhookSecret, body), "evt_early")

	assert.ErrorIs(t, err, apperr.ErrOrderNotFound)
	assert.False(t, f.redis.Exists("webhook:event:evt_early"))
}

func orderPaidBody(t *testing.T, o *order.Order, p payment.Payment) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"entity": "event",
		"event":  payment.EventOrderPaid,
		"payload": map[string]any{
			"payment": map[string]any{"entity": p},
			"order": map[string]any{"entity": payment.RemoteOrder{
				ID: o.Payment.GatewayOrderID, Amount: p.Amount, AmountPaid: p.Amount, Currency: "INR", Status: "paid",
			}},
		},
	})
	require.NoError(t, err)
	return body
}

func TestHandleWebhook_OrderPaidChecksGatewayOrder(t *testing.T) {
	f := newFixture(t)
	o := f.placeOnline(t)
	p := gatewayPayment(o, "pay_op", payment.StatusCaptured)
	f.gateway.AddPayment(p)
	body := orderPaidBody(t, o, p)

	require.NoError(t, f.handler.HandleWebhook(context.Background(), body, payment.Sign(webhookSecret, body), "evt_paid"))

	stored := f.reload(t, o.ID)
	assert.True(t, stored.IsPaid)
	assert.Equal(t, order.StatusProcessing, stored.Status())
	assert.Equal(t, []string{o.Payment.GatewayOrderID}, f.gateway.RemoteOrderCalls)
}

func TestHandleWebhook_OrderPaidShortfall(t *testing.T) {
	f := newFixture(t)
	o := f.placeOnline(t)
	p := gatewayPayment(o, "pay_op", payment.StatusCaptured)
	f.gateway.AddPayment(p)
	f.gateway.SetAmountPaid(o.Payment.GatewayOrderID, 120000)
	body := orderPaidBody(t, o, p)

	require.NoError(t, f.handler.HandleWebhook(context.Background(), body, payment.Sign(webhookSecret, body), "evt_paid"))

	stored := f.reload(t, o.ID)
	assert.False(t, stored.IsPaid)
	assert.Equal(t, order.StatusPending, stored.Status())
	assert.True(t, f.redis.Exists("webhook:event:evt_paid"))
}

func TestHandleWebhook_PaymentCapturedSkipsGatewayOrderRead(t *testing.T) {
	f := newFixture(t)
	o := f.placeOnline(t)
	p := gatewayPayment(o, "pay_001", payment.StatusCaptured)
	f.gateway.AddPayment(p)
	body := webhookBody(t, payment.EventPaymentCaptured, p)

	require.NoError(t, f.handler.HandleWebhook(context.Background(), body, payment.Sign(webhookSecret, body), "evt_1"))

	assert.Empty(t, f.gateway.RemoteOrderCalls)
}

// ============================================
// Reconcile Tests
// ============================================

func TestReconcile_PicksCapturedAttempt(t *testing.T) {
	f := newFixture(t)
	o := f.placeOnline(t)
	f.gateway.AddPayment(gatewayPayment(o, "pay_a", payment.StatusFailed))
	f.gateway.AddPayment(gatewayPayment(o, "pay_b", payment.StatusCaptured))

	got, found, err := f.handler.Reconcile(context.Background(), o.Payment.GatewayOrderID)

	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, order.StatusProcessing, got.Status())
	assert.Equal(t, "pay_b", got.Payment.GatewayPaymentID)
}

func TestReconcile_NoPayments(t *testing.T) {
	f := newFixture(t)
	o := f.placeOnline(t)

	got, found, err := f.handler.Reconcile(context.Background(), o.Payment.GatewayOrderID)

	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
}
