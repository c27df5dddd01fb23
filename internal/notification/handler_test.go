package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/example/ec-order-engine/internal/domain/order"
	"github.com/example/ec-order-engine/internal/email"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockMailer struct {
	confirmations []string
	updates       []string
	err           error
}

func (m *mockMailer) SendOrderConfirmation(to, orderNumber, currency string, total decimal.Decimal, items []email.OrderItem) error {
	m.confirmations = append(m.confirmations, to+":"+orderNumber)
	return m.err
}

func (m *mockMailer) SendStatusUpdate(to, orderNumber, status, note string) error {
	m.updates = append(m.updates, to+":"+status)
	return m.err
}

func envelope(t *testing.T, e order.DomainEvent) []byte {
	t.Helper()
	env, err := order.NewEnvelope("order-1", e, time.Now())
	require.NoError(t, err)
	data, err := json.Marshal(env)
	require.NoError(t, err)
	return data
}

func TestHandleEvent_OrderPlaced(t *testing.T) {
	mailer := &mockMailer{}
	h := NewHandler(mailer)

	err := h.HandleEvent(context.Background(), nil, envelope(t, order.OrderPlaced{
		OrderNumber:  "ORD-1",
		ContactEmail: "guest@example.com",
		Items:        []order.LineItem{{ProductID: "p1", Quantity: 1, Price: decimal.NewFromInt(10)}},
		TotalPrice:   decimal.NewFromInt(10),
	}))

	require.NoError(t, err)
	assert.Equal(t, []string{"guest@example.com:ORD-1"}, mailer.confirmations)
}

func TestHandleEvent_OrderPlaced_NoEmail(t *testing.T) {
	mailer := &mockMailer{}
	h := NewHandler(mailer)

	require.NoError(t, h.HandleEvent(context.Background(), nil, envelope(t, order.OrderPlaced{OrderNumber: "ORD-1"})))
	assert.Empty(t, mailer.confirmations)
}

func TestHandleEvent_StatusChanged(t *testing.T) {
	mailer := &mockMailer{}
	h := NewHandler(mailer)

	err := h.HandleEvent(context.Background(), nil, envelope(t, order.OrderStatusChanged{
		OrderNumber:  "ORD-1",
		ContactEmail: "a@example.com",
		From:         order.StatusProcessing,
		To:           order.StatusShipped,
	}))

	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com:shipped"}, mailer.updates)
}

func TestHandleEvent_IgnoresOtherEvents(t *testing.T) {
	mailer := &mockMailer{}
	h := NewHandler(mailer)

	require.NoError(t, h.HandleEvent(context.Background(), nil, envelope(t, order.PaymentRecorded{OrderNumber: "ORD-1"})))
	assert.Empty(t, mailer.confirmations)
	assert.Empty(t, mailer.updates)
}

func TestHandleEvent_Errors(t *testing.T) {
	h := NewHandler(&mockMailer{err: errors.New("smtp down")})

	assert.Error(t, h.HandleEvent(context.Background(), nil, []byte("garbage")))

	err := h.HandleEvent(context.Background(), nil, envelope(t, order.OrderPlaced{OrderNumber: "ORD-1", ContactEmail: "a@example.com"}))
	assert.ErrorContains(t, err, "smtp down")
}
