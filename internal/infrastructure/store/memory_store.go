package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/ec-order-engine/internal/apperr"
	"github.com/example/ec-order-engine/internal/domain/catalog"
	"github.com/example/ec-order-engine/internal/domain/inventory"
	"github.com/example/ec-order-engine/internal/domain/order"
)

// MemoryStore is an in-process backend for local runs and tests. A single
// mutex makes every stock check and decrement one atomic step.
type MemoryStore struct {
	mu        sync.RWMutex
	products  map[string]*catalog.Product
	orders    map[string]*order.Order
	numbers   map[string]string
	byGateway map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:  make(map[string]*catalog.Product),
		orders:    make(map[string]*order.Order),
		numbers:   make(map[string]string),
		byGateway: make(map[string]string),
	}
}

// PutProduct seeds or replaces a catalog entry.
func (s *MemoryStore) PutProduct(p catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = copyProduct(&p)
}

// Stock returns the current counter for ref, for diagnostics and tests.
func (s *MemoryStore) Stock(ref inventory.StockRef) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[ref.ProductID]
	if !ok {
		return 0
	}
	if ref.Size != "" {
		return p.Sizes[ref.Size]
	}
	return p.Quantity
}

func (s *MemoryStore) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperr.ErrProductNotFound, id)
	}
	return copyProduct(p), nil
}

func (s *MemoryStore) CompareAndDecrement(ctx context.Context, ref inventory.StockRef, qty int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[ref.ProductID]
	if !ok {
		return false, nil
	}
	if ref.Size != "" {
		have, ok := p.Sizes[ref.Size]
		if !ok || have < qty {
			return false, nil
		}
		p.Sizes[ref.Size] = have - qty
		return true, nil
	}
	if p.Quantity < qty {
		return false, nil
	}
	p.Quantity -= qty
	return true, nil
}

func (s *MemoryStore) Increment(ctx context.Context, ref inventory.StockRef, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[ref.ProductID]
	if !ok {
		return fmt.Errorf("%w: %s", apperr.ErrProductNotFound, ref)
	}
	if ref.Size != "" {
		if p.Sizes == nil {
			p.Sizes = make(map[string]int)
		}
		p.Sizes[ref.Size] += qty
		return nil
	}
	p.Quantity += qty
	return nil
}

func (s *MemoryStore) Create(ctx context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[o.ID]; exists {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	if _, exists := s.numbers[o.OrderNumber]; exists {
		return fmt.Errorf("order number %s already exists", o.OrderNumber)
	}
	o.Version = 1
	s.put(o)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.orders[o.ID]
	if !ok {
		return apperr.ErrOrderNotFound
	}
	if current.Version != o.Version {
		return fmt.Errorf("%w: order %s at version %d", apperr.ErrConcurrentUpdate, o.ID, o.Version)
	}
	if current.Payment.GatewayOrderID != "" && current.Payment.GatewayOrderID != o.Payment.GatewayOrderID {
		delete(s.byGateway, current.Payment.GatewayOrderID)
	}
	o.Version++
	s.put(o)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, apperr.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (s *MemoryStore) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byGateway[gatewayOrderID]
	if !ok {
		return nil, apperr.ErrOrderNotFound
	}
	return s.orders[id].Clone(), nil
}

func (s *MemoryStore) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*order.Order
	for _, o := range s.orders {
		if o.Status() == order.StatusPending && !o.IsPaid &&
			o.Payment.Method.IsOnline() && o.CreatedAt.Before(before) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) put(o *order.Order) {
	s.orders[o.ID] = o.Clone()
	s.numbers[o.OrderNumber] = o.ID
	if o.Payment.GatewayOrderID != "" {
		s.byGateway[o.Payment.GatewayOrderID] = o.ID
	}
}

func copyProduct(p *catalog.Product) *catalog.Product {
	c := *p
	if p.Sizes != nil {
		c.Sizes = make(map[string]int, len(p.Sizes))
		for k, v := range p.Sizes {
			c.Sizes[k] = v
		}
	}
	return &c
}
