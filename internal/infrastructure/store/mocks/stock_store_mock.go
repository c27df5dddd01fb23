package mocks

import (
	"context"
	"sync"

	"github.com/example/ec-order-engine/internal/domain/inventory"
)

// MockStockStore is a mock implementation of inventory.StockStore for testing
type MockStockStore struct {
	mu    sync.Mutex
	stock map[inventory.StockRef]int

	// For tracking calls in tests
	DecrementCalls []StockCall
	IncrementCalls []StockCall

	DecrementErr      error
	IncrementErr      error
	DecrementCallback func(ref inventory.StockRef, qty int) (bool, error)
}

// StockCall records parameters passed to CompareAndDecrement or Increment
type StockCall struct {
	Ref      inventory.StockRef
	Quantity int
}

// NewMockStockStore creates a new MockStockStore
func NewMockStockStore() *MockStockStore {
	return &MockStockStore{stock: make(map[inventory.StockRef]int)}
}

// Set seeds a counter.
func (m *MockStockStore) Set(ref inventory.StockRef, qty int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[ref] = qty
}

// Get returns a counter.
func (m *MockStockStore) Get(ref inventory.StockRef) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[ref]
}

func (m *MockStockStore) CompareAndDecrement(ctx context.Context, ref inventory.StockRef, qty int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DecrementCalls = append(m.DecrementCalls, StockCall{Ref: ref, Quantity: qty})

	if m.DecrementCallback != nil {
		return m.DecrementCallback(ref, qty)
	}
	if m.DecrementErr != nil {
		return false, m.DecrementErr
	}
	if m.stock[ref] < qty {
		return false, nil
	}
	m.stock[ref] -= qty
	return true, nil
}

func (m *MockStockStore) Increment(ctx context.Context, ref inventory.StockRef, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.IncrementCalls = append(m.IncrementCalls, StockCall{Ref: ref, Quantity: qty})

	if m.IncrementErr != nil {
		return m.IncrementErr
	}
	m.stock[ref] += qty
	return nil
}
