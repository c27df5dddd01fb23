package command

import (
	"strings"

	"github.com/example/ec-order-engine/internal/domain/order"
	"github.com/shopspring/decimal"
)

// Actor is the authenticated caller, if any.
type Actor struct {
	UserID string
	Email  string
	Admin  bool
}

// OrderItem is one submitted line. Clients send the product under either
// "productId" or "product"; ProductRef resolves the two.
type OrderItem struct {
	ProductID string          `json:"productId"`
	Product   string          `json:"product"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
}

// ProductRef returns the canonical product id of the line.
func (i OrderItem) ProductRef() string {
	if id := strings.TrimSpace(i.ProductID); id != "" {
		return id
	}
	return strings.TrimSpace(i.Product)
}

// Order Commands
type PlaceOrder struct {
	OrderItems      []OrderItem           `json:"orderItems"`
	ShippingAddress order.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   order.PaymentMethod   `json:"paymentMethod"`
	ItemsPrice      decimal.Decimal       `json:"itemsPrice"`
	TaxPrice        decimal.Decimal       `json:"taxPrice"`
	ShippingPrice   decimal.Decimal       `json:"shippingPrice"`
	TotalPrice      decimal.Decimal       `json:"totalPrice"`
	DiscountAmount  decimal.Decimal       `json:"discountAmount"`
	CouponCode      string                `json:"couponCode"`
	GuestInfo       *order.GuestInfo      `json:"guestInfo"`
	Notes           string                `json:"notes"`
}

// CreatePaymentOrder places an online-payment order and opens a gateway
// order for it. Amount is the total the customer was quoted.
type CreatePaymentOrder struct {
	Amount          decimal.Decimal       `json:"amount"`
	Currency        string                `json:"currency"`
	Items           []OrderItem           `json:"items"`
	ShippingAddress order.ShippingAddress `json:"shippingAddress"`
	Notes           string                `json:"notes"`
	TaxPrice        decimal.Decimal       `json:"taxPrice"`
	ShippingPrice   decimal.Decimal       `json:"shippingPrice"`
	DiscountAmount  decimal.Decimal       `json:"discountAmount"`
	CouponCode      string                `json:"couponCode"`
}

// placeOrder maps the payment request onto the common order request. The
// items price is the quoted line sum; the validator re-prices it.
func (c CreatePaymentOrder) placeOrder() PlaceOrder {
	itemsPrice := decimal.Zero
	for _, item := range c.Items {
		itemsPrice = itemsPrice.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return PlaceOrder{
		OrderItems:      c.Items,
		ShippingAddress: c.ShippingAddress,
		PaymentMethod:   order.MethodRazorpay,
		ItemsPrice:      itemsPrice,
		TaxPrice:        c.TaxPrice,
		ShippingPrice:   c.ShippingPrice,
		TotalPrice:      c.Amount,
		DiscountAmount:  c.DiscountAmount,
		CouponCode:      c.CouponCode,
		Notes:           c.Notes,
	}
}

type UpdateStatus struct {
	OrderID string `json:"-"`
	Status  string `json:"status"`
	Note    string `json:"note"`
}

type UpdateTracking struct {
	OrderID        string `json:"-"`
	TrackingNumber string `json:"trackingNumber"`
}

type CancelOrder struct {
	OrderID string `json:"-"`
	Reason  string `json:"reason"`
}
