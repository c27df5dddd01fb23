package store

import (
	"github.com/example/ec-order-engine/internal/domain/catalog"
	"github.com/example/ec-order-engine/internal/domain/inventory"
	"github.com/example/ec-order-engine/internal/domain/order"
)

// Store bundles the three ports the engine persists through. Both the
// PostgreSQL and the in-memory backends implement all of them.
type Store interface {
	catalog.Lookup
	inventory.StockStore
	order.Repository
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
