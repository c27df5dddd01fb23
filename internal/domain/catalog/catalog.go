// Package catalog describes the read-only product view the order engine
// prices and stock-checks against.
package catalog

import (
	"context"

	"github.com/shopspring/decimal"
)

// Product is the authoritative catalog entry for a purchasable item.
type Product struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Image          string          `json:"image"`
	Price          decimal.Decimal `json:"price"`
	TaxRate        decimal.Decimal `json:"taxRate"`
	TracksQuantity bool            `json:"tracksQuantity"`
	Quantity       int             `json:"quantity"`
	// Sizes maps a size label to its own stock counter. When non-empty,
	// stock is tracked per size and Quantity is ignored.
	Sizes map[string]int `json:"sizes,omitempty"`
}

// HasSizes reports whether stock is tracked per size variant.
func (p *Product) HasSizes() bool {
	return len(p.Sizes) > 0
}

// AvailableFor returns the stock that can satisfy a line item for size.
// The second value is false when the product does not offer that size.
func (p *Product) AvailableFor(size string) (int, bool) {
	if p.HasSizes() {
		q, ok := p.Sizes[size]
		return q, ok
	}
	return p.Quantity, true
}

// Lookup resolves products by id. It returns apperr.ErrProductNotFound
// when the id is unknown.
type Lookup interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
}
