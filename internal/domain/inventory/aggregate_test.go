package inventory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/ec-order-engine/internal/apperr"
	"github.com/example/ec-order-engine/internal/domain/inventory"
	"github.com/example/ec-order-engine/internal/domain/order"
	"github.com/example/ec-order-engine/internal/infrastructure/store/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	mug   = inventory.StockRef{ProductID: "prod-mug"}
	shirt = inventory.StockRef{ProductID: "prod-shirt", Size: "M"}
)

func newTestLedger() (*inventory.Ledger, *mocks.MockStockStore, *mocks.MockPublisher) {
	stock := mocks.NewMockStockStore()
	stock.Set(mug, 10)
	stock.Set(shirt, 3)
	publisher := mocks.NewMockPublisher()
	return inventory.NewLedger(stock, publisher), stock, publisher
}

// ============================================
// ReserveAndDecrement Tests
// ============================================

func TestLedger_Reserve_Success(t *testing.T) {
	ledger, stock, publisher := newTestLedger()

	err := ledger.ReserveAndDecrement(context.Background(), "ORD-1", []inventory.Line{
		{Ref: mug, Quantity: 2},
		{Ref: shirt, Quantity: 3},
	})

	require.NoError(t, err)
	assert.Equal(t, 8, stock.Get(mug))
	assert.Equal(t, 0, stock.Get(shirt))
	require.Len(t, publisher.Published, 1)
	moved := publisher.Published[0].Event.(inventory.StockMoved)
	assert.Equal(t, inventory.EventStockDecremented, moved.Type)
	assert.Equal(t, "ORD-1", moved.OrderRef)
}

func TestLedger_Reserve_MergesSameCounter(t *testing.T) {
	ledger, stock, _ := newTestLedger()

	err := ledger.ReserveAndDecrement(context.Background(), "ORD-1", []inventory.Line{
		{Ref: shirt, Quantity: 2},
		{Ref: shirt, Quantity: 2},
	})

	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Equal(t, 3, stock.Get(shirt))
	require.Len(t, stock.DecrementCalls, 1)
	assert.Equal(t, 4, stock.DecrementCalls[0].Quantity)
}

func TestLedger_Reserve_RollsBackOnShortage(t *testing.T) {
	ledger, stock, publisher := newTestLedger()

	err := ledger.ReserveAndDecrement(context.Background(), "ORD-1", []inventory.Line{
		{Ref: mug, Quantity: 4},
		{Ref: shirt, Quantity: 5},
	})

	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Equal(t, 10, stock.Get(mug), "applied decrement must be compensated")
	assert.Equal(t, 3, stock.Get(shirt))
	require.Len(t, stock.IncrementCalls, 1)
	assert.Equal(t, mug, stock.IncrementCalls[0].Ref)
	assert.Empty(t, publisher.Published)
}

func TestLedger_Reserve_StoreErrorRollsBack(t *testing.T) {
	ledger, stock, _ := newTestLedger()
	boom := errors.New("connection reset")
	stock.DecrementCallback = func(ref inventory.StockRef, qty int) (bool, error) {
		if ref == shirt {
			return false, boom
		}
		return true, nil
	}

	err := ledger.ReserveAndDecrement(context.Background(), "ORD-1", []inventory.Line{
		{Ref: mug, Quantity: 1},
		{Ref: shirt, Quantity: 1},
	})

	assert.ErrorIs(t, err, boom)
	require.Len(t, stock.IncrementCalls, 1)
	assert.Equal(t, mug, stock.IncrementCalls[0].Ref)
}

func TestLedger_Reserve_CompensatesAfterCancel(t *testing.T) {
	ledger, stock, _ := newTestLedger()
	ctx, cancel := context.WithCancel(context.Background())
	stock.DecrementCallback = func(ref inventory.StockRef, qty int) (bool, error) {
		if ref == shirt {
			cancel()
			return false, context.Canceled
		}
		return true, nil
	}

	err := ledger.ReserveAndDecrement(ctx, "ORD-1", []inventory.Line{
		{Ref: mug, Quantity: 1},
		{Ref: shirt, Quantity: 1},
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, stock.IncrementCalls, 1)
}

func TestLedger_Reserve_InvalidQuantity(t *testing.T) {
	ledger, stock, _ := newTestLedger()

	err := ledger.ReserveAndDecrement(context.Background(), "ORD-1", []inventory.Line{{Ref: mug, Quantity: 0}})

	assert.ErrorIs(t, err, inventory.ErrInvalidQuantity)
	assert.Empty(t, stock.DecrementCalls)
}

// ============================================
// Restore Tests
// ============================================

func TestLedger_Restore(t *testing.T) {
	ledger, stock, publisher := newTestLedger()

	err := ledger.Restore(context.Background(), "ORD-1", []inventory.Line{{Ref: mug, Quantity: 2}})

	require.NoError(t, err)
	assert.Equal(t, 12, stock.Get(mug))
	require.Len(t, publisher.Published, 1)
	assert.Equal(t, inventory.EventStockRestored, publisher.Published[0].Event.(inventory.StockMoved).Type)
}

func TestLedger_Restore_ReportsErrors(t *testing.T) {
	ledger, stock, _ := newTestLedger()
	stock.IncrementErr = errors.New("db down")

	err := ledger.Restore(context.Background(), "ORD-1", []inventory.Line{{Ref: mug, Quantity: 1}, {Ref: shirt, Quantity: 1}})

	require.Error(t, err)
	assert.Len(t, stock.IncrementCalls, 2, "every line is attempted")
}

func TestClaimRelease_OnlyOnce(t *testing.T) {
	ledger, stock, _ := newTestLedger()
	o := order.New(order.MethodRazorpay, time.Now())
	o.Items = []order.LineItem{
		{ProductID: mug.ProductID, Quantity: 2, Price: decimal.NewFromInt(5), StockReserved: true},
		{ProductID: "prod-digital", Quantity: 1, Price: decimal.NewFromInt(5)},
	}

	lines := inventory.ClaimRelease(o)
	require.NoError(t, ledger.Restore(context.Background(), o.OrderNumber, lines))

	assert.True(t, o.StockReleased)
	assert.Nil(t, inventory.ClaimRelease(o), "second claim owes nothing")
	assert.Equal(t, 12, stock.Get(mug))
	assert.Len(t, stock.IncrementCalls, 1)
}

func TestClaimRelease_AfterShipment(t *testing.T) {
	now := time.Now()
	o := order.New(order.MethodCashOnDelivery, now)
	o.Items = []order.LineItem{{ProductID: mug.ProductID, Quantity: 1, StockReserved: true}}
	require.NoError(t, o.Transition(order.StatusProcessing, "", now))
	require.NoError(t, o.Transition(order.StatusShipped, "", now))

	assert.Nil(t, inventory.ClaimRelease(o))
	assert.False(t, o.StockReleased)
}

func TestLinesFromOrder_SkipsUntrackedItems(t *testing.T) {
	o := order.New(order.MethodCashOnDelivery, time.Now())
	o.Items = []order.LineItem{
		{ProductID: "prod-shirt", Size: "M", Quantity: 1, StockReserved: true},
		{ProductID: "prod-ebook", Quantity: 1},
	}

	lines := inventory.LinesFromOrder(o)

	assert.Equal(t, []inventory.Line{{Ref: shirt, Quantity: 1}}, lines)
}
