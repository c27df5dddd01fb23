package order

import (
	"context"
	"errors"

	"github.com/example/ec-order-engine/internal/apperr"
)

const maxUpdateAttempts = 3

// Loader reads the current version of one order.
type Loader func(ctx context.Context) (*Order, error)

// ByID loads an order by its storage id.
func ByID(repo Repository, id string) Loader {
	return func(ctx context.Context) (*Order, error) { return repo.Get(ctx, id) }
}

// ByGatewayOrderID loads the order paid for by a gateway order.
func ByGatewayOrderID(repo Repository, gatewayOrderID string) Loader {
	return func(ctx context.Context) (*Order, error) { return repo.GetByGatewayOrderID(ctx, gatewayOrderID) }
}

// Mutate loads an order, applies fn and stores the result. When another
// writer bumped the version in between, the whole cycle is retried on a
// fresh copy. fn reports false to leave the order unsaved.
func Mutate(ctx context.Context, repo Repository, load Loader, fn func(o *Order) (bool, error)) (*Order, error) {
	var lastErr error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		o, err := load(ctx)
		if err != nil {
			return nil, err
		}
		changed, err := fn(o)
		if err != nil {
			return nil, err
		}
		if !changed {
			return o, nil
		}
		err = repo.Update(ctx, o)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, apperr.ErrConcurrentUpdate) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}
