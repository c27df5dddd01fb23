package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/ec-order-engine/internal/apperr"
	"github.com/example/ec-order-engine/internal/payment"
	"github.com/shopspring/decimal"
)

// MockGateway is an in-memory payment gateway. Payments are seeded per
// gateway order; CreateRemoteOrder hands out sequential ids.
type MockGateway struct {
	mu       sync.Mutex
	seq      int
	orders   map[string]*payment.RemoteOrder
	payments map[string][]payment.Payment
	paid     map[string]int64

	// For tracking calls in tests
	CreateCalls     []CreateRemoteOrderCall
	FetchCalls       []string
	FetchOrderCalls  []string
	RemoteOrderCalls []string

	CreateErr error
	FetchErr  error
}

// CreateRemoteOrderCall records parameters passed to CreateRemoteOrder
type CreateRemoteOrderCall struct {
	Amount   decimal.Decimal
	Currency string
	Receipt  string
	Notes    map[string]string
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		orders:   make(map[string]*payment.RemoteOrder),
		payments: make(map[string][]payment.Payment),
		paid:     make(map[string]int64),
	}
}

func (m *MockGateway) KeyID() string { return "rzp_test_key" }

func (m *MockGateway) CreateRemoteOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string, notes map[string]string) (*payment.RemoteOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls = append(m.CreateCalls, CreateRemoteOrderCall{Amount: amount, Currency: currency, Receipt: receipt, Notes: notes})
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.seq++
	ro := &payment.RemoteOrder{
		ID:       fmt.Sprintf("order_test%03d", m.seq),
		Entity:   "order",
		Amount:   payment.ToMinorUnits(amount),
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
		Notes:    notes,
	}
	m.orders[ro.ID] = ro
	return ro, nil
}

// AddPayment seeds a payment attempt against its gateway order.
func (m *MockGateway) AddPayment(p payment.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.OrderID] = append(m.payments[p.OrderID], p)
}

// SetAmountPaid overrides the amount_paid FetchOrder reports.
func (m *MockGateway) SetAmountPaid(orderID string, minor int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paid[orderID] = minor
}

func (m *MockGateway) FetchPayment(ctx context.Context, paymentID string) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FetchCalls = append(m.FetchCalls, paymentID)
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	for _, list := range m.payments {
		for _, p := range list {
			if p.ID == paymentID {
				p := p
				return &p, nil
			}
		}
	}
	return nil, fmt.Errorf("payment %s not found", paymentID)
}

// FetchOrder returns the gateway order with amount_paid summed from its
// captured attempts.
func (m *MockGateway) FetchOrder(ctx context.Context, orderID string) (*payment.RemoteOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RemoteOrderCalls = append(m.RemoteOrderCalls, orderID)
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	ro, ok := m.orders[orderID]
	if !ok {
		return nil, &apperr.GatewayError{StatusCode: 400, Code: "BAD_REQUEST_ERROR", Message: "The id provided does not exist"}
	}
	out := *ro
	out.AmountPaid = 0
	for _, p := range m.payments[orderID] {
		if p.Status == payment.StatusCaptured {
			out.AmountPaid += p.Amount
		}
	}
	if paid, ok := m.paid[orderID]; ok {
		out.AmountPaid = paid
	}
	out.AmountDue = out.Amount - out.AmountPaid
	if out.AmountPaid > 0 {
		out.Status = "paid"
	}
	return &out, nil
}

func (m *MockGateway) FetchOrderPayments(ctx context.Context, orderID string) ([]payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FetchOrderCalls = append(m.FetchOrderCalls, orderID)
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	return append([]payment.Payment(nil), m.payments[orderID]...), nil
}
