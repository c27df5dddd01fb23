package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/ec-order-engine/internal/apperr"
	"github.com/example/ec-order-engine/internal/domain/order"
)

// MockOrderRepository is a mock implementation of order.Repository for testing
type MockOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*order.Order

	// For tracking calls in tests
	CreateCalls []*order.Order
	UpdateCalls []*order.Order

	CreateErr error
	// UpdateCallback runs before the version check. Returning an error
	// fails the update.
	UpdateCallback func(o *order.Order) error
}

// NewMockOrderRepository creates a new MockOrderRepository
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{orders: make(map[string]*order.Order)}
}

// Add stores an order directly, bypassing call tracking.
func (m *MockOrderRepository) Add(o *order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.Version == 0 {
		o.Version = 1
	}
	m.orders[o.ID] = o.Clone()
}

func (m *MockOrderRepository) Create(ctx context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls = append(m.CreateCalls, o.Clone())
	if m.CreateErr != nil {
		return m.CreateErr
	}
	o.Version = 1
	m.orders[o.ID] = o.Clone()
	return nil
}

func (m *MockOrderRepository) Update(ctx context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdateCalls = append(m.UpdateCalls, o.Clone())
	if m.UpdateCallback != nil {
		if err := m.UpdateCallback(o); err != nil {
			return err
		}
	}
	current, ok := m.orders[o.ID]
	if !ok {
		return apperr.ErrOrderNotFound
	}
	if current.Version != o.Version {
		return fmt.Errorf("%w: order %s", apperr.ErrConcurrentUpdate, o.ID)
	}
	o.Version++
	m.orders[o.ID] = o.Clone()
	return nil
}

func (m *MockOrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, apperr.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (m *MockOrderRepository) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orders {
		if o.Payment.GatewayOrderID == gatewayOrderID {
			return o.Clone(), nil
		}
	}
	return nil, apperr.ErrOrderNotFound
}

func (m *MockOrderRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*order.Order
	for _, o := range m.orders {
		if o.Status() == order.StatusPending && !o.IsPaid && o.Payment.Method.IsOnline() && o.CreatedAt.Before(before) {
			out = append(out, o.Clone())
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
