package payment

import (
	"time"

	"github.com/example/ec-order-engine/internal/domain/order"
	"github.com/shopspring/decimal"
)

// ToMinorUnits converts a decimal currency amount to the gateway's integer
// minor units, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// ToMajorUnits is the exact inverse of ToMinorUnits for integral input.
func ToMajorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// Snapshot converts the payment into the audit record kept on the order.
func (p *Payment) Snapshot(at time.Time) *order.PaymentDetail {
	d := &order.PaymentDetail{
		Method:   p.Method,
		Bank:     p.Bank,
		Wallet:   p.Wallet,
		Amount:   ToMajorUnits(p.Amount),
		Currency: p.Currency,
		Status:   p.Status,
	}
	if p.Status == StatusCaptured {
		d.CapturedAt = &at
	}
	return d
}
