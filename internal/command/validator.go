package command

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/example/ec-order-engine/internal/apperr"
	"github.com/example/ec-order-engine/internal/domain/catalog"
	"github.com/example/ec-order-engine/internal/domain/inventory"
	"github.com/example/ec-order-engine/internal/domain/order"
	"github.com/shopspring/decimal"
)

// totalTolerance absorbs currency rounding in client-computed totals.
var totalTolerance = decimal.New(1, -2)

// Draft is a validated, re-priced order request. Item names, images and
// prices come from the catalog.
type Draft struct {
	Items           []order.LineItem
	ShippingAddress order.ShippingAddress
	PaymentMethod   order.PaymentMethod
	ItemsPrice      decimal.Decimal
	TaxPrice        decimal.Decimal
	ShippingPrice   decimal.Decimal
	DiscountAmount  decimal.Decimal
	TotalPrice      decimal.Decimal
	CouponCode      string
	Notes           string

	UserID       string
	Guest        *order.GuestInfo
	ContactEmail string
}

// StockLines returns the counters the draft needs taken from the ledger.
func (d *Draft) StockLines() []inventory.Line {
	var lines []inventory.Line
	for _, item := range d.Items {
		if item.StockReserved {
			lines = append(lines, inventory.Line{
				Ref:      inventory.StockRef{ProductID: item.ProductID, Size: item.Size},
				Quantity: item.Quantity,
			})
		}
	}
	return lines
}

// NewOrder builds the pending, unpaid order for the draft.
func (d *Draft) NewOrder(currency string, now time.Time) *order.Order {
	o := order.New(d.PaymentMethod, now)
	o.UserID = d.UserID
	o.Guest = d.Guest
	o.IsGuestOrder = d.Guest != nil
	o.ContactEmail = d.ContactEmail
	o.Items = d.Items
	o.ShippingAddress = d.ShippingAddress
	o.ItemsPrice = d.ItemsPrice
	o.TaxPrice = d.TaxPrice
	o.ShippingPrice = d.ShippingPrice
	o.DiscountAmount = d.DiscountAmount
	o.TotalPrice = d.TotalPrice
	o.Currency = currency
	o.CouponCode = d.CouponCode
	o.Notes = d.Notes
	return o
}

// Validator checks order requests against the catalog. It never writes.
type Validator struct {
	catalog catalog.Lookup
}

func NewValidator(lookup catalog.Lookup) *Validator {
	return &Validator{catalog: lookup}
}

// Validate runs the structural checks, resolves the owner and re-prices
// every line against the catalog. Structural problems are reported
// together in one *apperr.ValidationError.
func (v *Validator) Validate(ctx context.Context, cmd PlaceOrder, actor *Actor) (*Draft, error) {
	if len(cmd.OrderItems) == 0 {
		return nil, apperr.ErrEmptyOrder
	}

	if err := checkStructure(cmd); err != nil {
		return nil, err
	}

	draft := &Draft{
		ShippingAddress: trimAddress(cmd.ShippingAddress),
		PaymentMethod:   cmd.PaymentMethod,
		ItemsPrice:      cmd.ItemsPrice,
		TaxPrice:        cmd.TaxPrice,
		ShippingPrice:   cmd.ShippingPrice,
		DiscountAmount:  cmd.DiscountAmount,
		TotalPrice:      cmd.TotalPrice,
		CouponCode:      strings.TrimSpace(cmd.CouponCode),
		Notes:           strings.TrimSpace(cmd.Notes),
	}
	if err := resolveOwner(draft, cmd.GuestInfo, actor); err != nil {
		return nil, err
	}

	items, err := v.price(ctx, cmd.OrderItems)
	if err != nil {
		return nil, err
	}
	draft.Items = items

	catalogTotal := decimal.Zero
	for _, item := range items {
		catalogTotal = catalogTotal.Add(item.Subtotal())
	}
	if !catalogTotal.Equal(cmd.ItemsPrice) {
		return nil, fmt.Errorf("%w: itemsPrice %s does not match catalog total %s",
			apperr.ErrPriceMismatch, cmd.ItemsPrice, catalogTotal)
	}
	return draft, nil
}

// price resolves each line against the catalog and checks stock summed
// per counter.
func (v *Validator) price(ctx context.Context, requested []OrderItem) ([]order.LineItem, error) {
	products := make(map[string]*catalog.Product)
	wanted := make(map[inventory.StockRef]int)
	items := make([]order.LineItem, 0, len(requested))

	for i, req := range requested {
		id := req.ProductRef()
		p, ok := products[id]
		if !ok {
			var err error
			p, err = v.catalog.GetProduct(ctx, id)
			if err != nil {
				return nil, err
			}
			products[id] = p
		}

		if !req.Price.Equal(p.Price) {
			return nil, fmt.Errorf("%w: %s submitted at %s, catalog price is %s",
				apperr.ErrPriceMismatch, p.Name, req.Price, p.Price)
		}

		size := strings.TrimSpace(req.Size)
		if !p.HasSizes() {
			size = ""
		} else if _, offered := p.Sizes[size]; !offered {
			return nil, &apperr.ValidationError{Fields: []apperr.FieldError{{
				Field:   fmt.Sprintf("orderItems[%d].size", i),
				Message: fmt.Sprintf("%s is not offered in size %q", p.Name, size),
			}}}
		}

		if p.TracksQuantity {
			ref := inventory.StockRef{ProductID: p.ID, Size: size}
			wanted[ref] += req.Quantity
			available, _ := p.AvailableFor(size)
			if available < wanted[ref] {
				return nil, fmt.Errorf("%w: %s has %d available, %d requested",
					apperr.ErrInsufficientStock, p.Name, available, wanted[ref])
			}
		}

		items = append(items, order.LineItem{
			ProductID:     p.ID,
			Name:          p.Name,
			Image:         p.Image,
			Price:         p.Price,
			Quantity:      req.Quantity,
			Size:          size,
			Color:         strings.TrimSpace(req.Color),
			StockReserved: p.TracksQuantity,
		})
	}
	return items, nil
}

func checkStructure(cmd PlaceOrder) error {
	verr := &apperr.ValidationError{}

	for i, item := range cmd.OrderItems {
		if item.ProductRef() == "" {
			verr.Add(fmt.Sprintf("orderItems[%d].productId", i), "is required")
		}
		if item.Quantity < 1 {
			verr.Add(fmt.Sprintf("orderItems[%d].quantity", i), "must be at least 1")
		}
		if item.Price.IsNegative() {
			verr.Add(fmt.Sprintf("orderItems[%d].price", i), "must not be negative")
		}
	}

	addr := cmd.ShippingAddress
	required := []struct{ field, value string }{
		{"shippingAddress.address", addr.Address},
		{"shippingAddress.city", addr.City},
		{"shippingAddress.postalCode", addr.PostalCode},
		{"shippingAddress.country", addr.Country},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			verr.Add(r.field, "is required")
		}
	}

	if !cmd.PaymentMethod.Valid() {
		verr.Add("paymentMethod", fmt.Sprintf("unsupported payment method %q", cmd.PaymentMethod))
	}

	money := []struct {
		field string
		value decimal.Decimal
	}{
		{"itemsPrice", cmd.ItemsPrice},
		{"taxPrice", cmd.TaxPrice},
		{"shippingPrice", cmd.ShippingPrice},
		{"discountAmount", cmd.DiscountAmount},
		{"totalPrice", cmd.TotalPrice},
	}
	negative := false
	for _, m := range money {
		if m.value.IsNegative() {
			verr.Add(m.field, "must not be negative")
			negative = true
		}
	}
	if !negative {
		expected := cmd.ItemsPrice.Add(cmd.TaxPrice).Add(cmd.ShippingPrice).Sub(cmd.DiscountAmount)
		if expected.Sub(cmd.TotalPrice).Abs().GreaterThan(totalTolerance) {
			verr.Add("totalPrice", fmt.Sprintf("must equal items + tax + shipping - discount (%s)", expected.StringFixed(2)))
		}
	}

	return verr.OrNil()
}

// resolveOwner prefers the authenticated user and otherwise requires a
// complete guest block.
func resolveOwner(d *Draft, guest *order.GuestInfo, actor *Actor) error {
	if actor != nil && actor.UserID != "" {
		d.UserID = actor.UserID
		d.ContactEmail = actor.Email
		return nil
	}
	if guest == nil {
		return fmt.Errorf("%w: sign in or provide guestInfo", apperr.ErrMissingCustomerInfo)
	}

	g := order.GuestInfo{
		Email:     strings.TrimSpace(guest.Email),
		FirstName: strings.TrimSpace(guest.FirstName),
		LastName:  strings.TrimSpace(guest.LastName),
		Phone:     strings.TrimSpace(guest.Phone),
	}
	var missing []string
	if g.Email == "" {
		missing = append(missing, "email")
	} else if _, err := mail.ParseAddress(g.Email); err != nil {
		missing = append(missing, "email")
	}
	if g.FirstName == "" {
		missing = append(missing, "firstName")
	}
	if g.LastName == "" {
		missing = append(missing, "lastName")
	}
	if g.Phone == "" {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: guestInfo needs %s", apperr.ErrMissingCustomerInfo, strings.Join(missing, ", "))
	}

	d.Guest = &g
	d.ContactEmail = g.Email
	return nil
}

func trimAddress(a order.ShippingAddress) order.ShippingAddress {
	return order.ShippingAddress{
		Address:    strings.TrimSpace(a.Address),
		City:       strings.TrimSpace(a.City),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
		State:      strings.TrimSpace(a.State),
	}
}
