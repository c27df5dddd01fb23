package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/ec-order-engine/internal/apperr"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// ParseStatus accepts only the closed set of order statuses.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded:
		return st, true
	}
	return "", false
}

type PaymentStatus string

const (
	PaymentUnpaid     PaymentStatus = "unpaid"
	PaymentAuthorized PaymentStatus = "authorized"
	PaymentCaptured   PaymentStatus = "captured"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	MethodCard           PaymentMethod = "card"
	MethodWallet         PaymentMethod = "wallet"
	MethodBankTransfer   PaymentMethod = "bank_transfer"
	MethodCashOnDelivery PaymentMethod = "cash_on_delivery"
	MethodRazorpay       PaymentMethod = "razorpay"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodWallet, MethodBankTransfer, MethodCashOnDelivery, MethodRazorpay:
		return true
	}
	return false
}

// IsOnline reports whether the method settles through the payment gateway.
func (m PaymentMethod) IsOnline() bool {
	return m.Valid() && m != MethodCashOnDelivery
}

// validTransitions defines allowed state transitions. Refunds are handled
// separately because they depend on payment, not on the current status.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

var validPaymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentUnpaid:     {PaymentAuthorized, PaymentCaptured, PaymentFailed},
	PaymentAuthorized: {PaymentCaptured, PaymentFailed},
	PaymentFailed:     {PaymentCaptured},
	PaymentCaptured:   {PaymentRefunded},
	PaymentRefunded:   {},
}

// maxProcessedEvents bounds the per-order gateway event id window.
const maxProcessedEvents = 20

type ShippingAddress struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	State      string `json:"state,omitempty"`
}

type GuestInfo struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

// LineItem is a purchased product. Name, Image and Price are snapshots
// taken when the order was placed.
type LineItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`

	// StockReserved marks lines whose quantity was taken from the ledger.
	StockReserved bool `json:"stockReserved,omitempty"`
}

// Subtotal returns price times quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// PaymentDetail is the gateway's view of a payment, kept for audit.
type PaymentDetail struct {
	Method     string          `json:"method"`
	Bank       string          `json:"bank,omitempty"`
	Wallet     string          `json:"wallet,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Status     string          `json:"status"`
	CapturedAt *time.Time      `json:"capturedAt,omitempty"`
}

type PaymentInfo struct {
	Method            PaymentMethod  `json:"method"`
	Status            PaymentStatus  `json:"status"`
	GatewayOrderID    string         `json:"gatewayOrderId,omitempty"`
	GatewayPaymentID  string         `json:"gatewayPaymentId,omitempty"`
	SignatureVerified bool           `json:"signatureVerified"`
	PaidAt            *time.Time     `json:"paidAt,omitempty"`
	Detail            *PaymentDetail `json:"detail,omitempty"`
	LastEventID       string         `json:"lastEventId,omitempty"`
	ProcessedEventIDs []string       `json:"processedEventIds,omitempty"`
}

type HistoryEntry struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}

// Order is the aggregate root of the order lifecycle. Its status and
// history only change through Transition and AssignTracking.
type Order struct {
	ID           string     `json:"id"`
	OrderNumber  string     `json:"orderNumber"`
	UserID       string     `json:"user,omitempty"`
	Guest        *GuestInfo `json:"guestInfo,omitempty"`
	IsGuestOrder bool       `json:"isGuestOrder"`
	ContactEmail string     `json:"contactEmail,omitempty"`

	Items           []LineItem      `json:"orderItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`

	ItemsPrice     decimal.Decimal `json:"itemsPrice"`
	TaxPrice       decimal.Decimal `json:"taxPrice"`
	ShippingPrice  decimal.Decimal `json:"shippingPrice"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	TotalPrice     decimal.Decimal `json:"totalPrice"`
	Currency       string          `json:"currency"`
	CouponCode     string          `json:"couponCode,omitempty"`

	Payment PaymentInfo `json:"paymentInfo"`

	IsPaid         bool       `json:"isPaid"`
	PaidAt         *time.Time `json:"paidAt,omitempty"`
	IsDelivered    bool       `json:"isDelivered"`
	DeliveredAt    *time.Time `json:"deliveredAt,omitempty"`
	TrackingNumber string     `json:"trackingNumber,omitempty"`
	Notes          string     `json:"notes,omitempty"`

	// StockReleased is set once reserved stock has been handed back.
	StockReleased bool `json:"stockReleased"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int       `json:"version"`

	status  Status
	history []HistoryEntry
	changes []DomainEvent
}

// NewOrderNumber returns a fresh, time-ordered order number.
func NewOrderNumber() string {
	return "ORD-" + ulid.Make().String()
}

// New creates a pending, unpaid order with its identity assigned. The
// caller fills in owner, items and money before persisting it.
func New(method PaymentMethod, now time.Time) *Order {
	return &Order{
		ID:          uuid.New().String(),
		OrderNumber: NewOrderNumber(),
		Payment:     PaymentInfo{Method: method, Status: PaymentUnpaid},
		CreatedAt:   now,
		UpdatedAt:   now,
		status:      StatusPending,
		history:     []HistoryEntry{{Status: StatusPending, Timestamp: now, Note: "Order placed"}},
	}
}

func (o *Order) Status() Status { return o.status }

// History returns a copy of the status history, oldest first.
func (o *Order) History() []HistoryEntry {
	out := make([]HistoryEntry, len(o.history))
	copy(out, o.history)
	return out
}

// CanTransitionTo checks if the order can transition to the target status
func (o *Order) CanTransitionTo(target Status) bool {
	if target == StatusRefunded {
		return o.IsPaid && o.status != StatusRefunded
	}
	for _, s := range validTransitions[o.status] {
		if s == target {
			return true
		}
	}
	return false
}

// Transition moves the order to target and appends one history entry.
// Illegal moves return ErrIllegalTransition and leave the order untouched.
func (o *Order) Transition(target Status, note string, at time.Time) error {
	if !o.CanTransitionTo(target) {
		return fmt.Errorf("%w: cannot transition from %s to %s", apperr.ErrIllegalTransition, o.status, target)
	}

	o.move(target, note, at)

	switch target {
	case StatusDelivered:
		o.IsDelivered = true
		o.DeliveredAt = &at
		// Cash is collected at the door.
		if o.Payment.Method == MethodCashOnDelivery && !o.IsPaid {
			o.Payment.Status = PaymentCaptured
			o.markPaid(at)
		}
	case StatusRefunded:
		o.Payment.Status = PaymentRefunded
	}
	return nil
}

// AssignTracking records a carrier tracking number. A processing order
// is shipped by it.
func (o *Order) AssignTracking(number string, at time.Time) error {
	if o.status == StatusCancelled || o.status == StatusRefunded {
		return fmt.Errorf("%w: cannot assign tracking to a %s order", apperr.ErrIllegalTransition, o.status)
	}
	o.TrackingNumber = number
	o.UpdatedAt = at
	if o.status == StatusProcessing {
		o.move(StatusShipped, "Shipped with tracking number "+number, at)
	}
	return nil
}

// ApplyPayment advances the payment sub-state. It returns false with no
// error when the payment is already in target.
func (o *Order) ApplyPayment(target PaymentStatus, at time.Time) (bool, error) {
	current := o.Payment.Status
	if current == "" {
		current = PaymentUnpaid
	}
	if current == target {
		return false, nil
	}

	allowed := false
	for _, s := range validPaymentTransitions[current] {
		if s == target {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, fmt.Errorf("%w: payment cannot move from %s to %s", apperr.ErrIllegalTransition, current, target)
	}

	o.Payment.Status = target
	o.UpdatedAt = at
	if target == PaymentCaptured {
		o.markPaid(at)
	}
	o.changes = append(o.changes, PaymentRecorded{
		OrderID:          o.ID,
		OrderNumber:      o.OrderNumber,
		ContactEmail:     o.ContactEmail,
		GatewayOrderID:   o.Payment.GatewayOrderID,
		GatewayPaymentID: o.Payment.GatewayPaymentID,
		Status:           target,
		Amount:           o.TotalPrice,
		Currency:         o.Currency,
		RecordedAt:       at,
	})
	return true, nil
}

// ReachedShipment reports whether the goods ever left the warehouse.
func (o *Order) ReachedShipment() bool {
	for _, h := range o.history {
		if h.Status == StatusShipped || h.Status == StatusDelivered {
			return true
		}
	}
	return false
}

// NeedsRestock reports whether the stock held by this order should be
// returned to the ledger.
func (o *Order) NeedsRestock() bool {
	return !o.StockReleased && !o.ReachedShipment()
}

// HasProcessedEvent reports whether a gateway event id was already applied.
func (o *Order) HasProcessedEvent(id string) bool {
	if id == "" {
		return false
	}
	for _, seen := range o.Payment.ProcessedEventIDs {
		if seen == id {
			return true
		}
	}
	return false
}

// RecordEvent remembers a gateway event id, keeping the newest ones.
func (o *Order) RecordEvent(id string) {
	if id == "" || o.HasProcessedEvent(id) {
		return
	}
	o.Payment.LastEventID = id
	o.Payment.ProcessedEventIDs = append(o.Payment.ProcessedEventIDs, id)
	if n := len(o.Payment.ProcessedEventIDs); n > maxProcessedEvents {
		o.Payment.ProcessedEventIDs = o.Payment.ProcessedEventIDs[n-maxProcessedEvents:]
	}
}

// PullEvents returns and clears the domain events raised since the last call.
func (o *Order) PullEvents() []DomainEvent {
	out := o.changes
	o.changes = nil
	return out
}

// RecordPlaced raises the OrderPlaced event once the order is fully built.
func (o *Order) RecordPlaced() {
	o.changes = append(o.changes, OrderPlaced{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		ContactEmail:  o.ContactEmail,
		IsGuestOrder:  o.IsGuestOrder,
		Items:         o.Items,
		TotalPrice:    o.TotalPrice,
		Currency:      o.Currency,
		PaymentMethod: o.Payment.Method,
		PlacedAt:      o.CreatedAt,
	})
}

// Clone returns a deep copy without pending domain events.
func (o *Order) Clone() *Order {
	c := *o
	c.changes = nil
	c.Items = append([]LineItem(nil), o.Items...)
	c.history = append([]HistoryEntry(nil), o.history...)
	c.Payment.ProcessedEventIDs = append([]string(nil), o.Payment.ProcessedEventIDs...)
	if o.Guest != nil {
		g := *o.Guest
		c.Guest = &g
	}
	if o.Payment.Detail != nil {
		d := *o.Payment.Detail
		c.Payment.Detail = &d
	}
	return &c
}

func (o *Order) move(target Status, note string, at time.Time) {
	from := o.status
	o.status = target
	o.history = append(o.history, HistoryEntry{Status: target, Timestamp: at, Note: note})
	o.UpdatedAt = at
	o.changes = append(o.changes, OrderStatusChanged{
		OrderID:      o.ID,
		OrderNumber:  o.OrderNumber,
		ContactEmail: o.ContactEmail,
		From:         from,
		To:           target,
		Note:         note,
		ChangedAt:    at,
	})
}

func (o *Order) markPaid(at time.Time) {
	if !o.IsPaid {
		o.IsPaid = true
		o.PaidAt = &at
		o.Payment.PaidAt = &at
	}
}

func (o Order) MarshalJSON() ([]byte, error) {
	type Alias Order
	return json.Marshal(struct {
		Alias
		Status  Status         `json:"status"`
		History []HistoryEntry `json:"statusHistory"`
	}{Alias: Alias(o), Status: o.status, History: o.history})
}

func (o *Order) UnmarshalJSON(data []byte) error {
	type Alias Order
	aux := struct {
		*Alias
		Status  Status         `json:"status"`
		History []HistoryEntry `json:"statusHistory"`
	}{Alias: (*Alias)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	o.status = aux.Status
	o.history = aux.History
	return nil
}

// Repository persists orders. Update is version checked and returns
// apperr.ErrConcurrentUpdate when the stored version moved on.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Order, error)
	Update(ctx context.Context, o *Order) error
	// ListStalePending returns online-payment orders still pending and
	// unpaid that were created before the cutoff.
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]*Order, error)
}
