package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/ec-order-engine/internal/apperr"
	"github.com/example/ec-order-engine/internal/domain/catalog"
	"github.com/example/ec-order-engine/internal/domain/inventory"
)

// CompareAndDecrement is a single conditional UPDATE, so two concurrent
// orders can never both pass a stale stock check.
func (s *PostgresStore) CompareAndDecrement(ctx context.Context, ref inventory.StockRef, qty int) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if ref.Size == "" {
		res, err = s.db.ExecContext(ctx,
			`UPDATE products SET quantity = quantity - $2 WHERE id = $1 AND quantity >= $2`,
			ref.ProductID, qty)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE product_sizes SET quantity = quantity - $3 WHERE product_id = $1 AND size = $2 AND quantity >= $3`,
			ref.ProductID, ref.Size, qty)
	}
	if err != nil {
		return false, fmt.Errorf("decrement %s: %w", ref, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *PostgresStore) Increment(ctx context.Context, ref inventory.StockRef, qty int) error {
	var (
		res sql.Result
		err error
	)
	if ref.Size == "" {
		res, err = s.db.ExecContext(ctx,
			`UPDATE products SET quantity = quantity + $2 WHERE id = $1`,
			ref.ProductID, qty)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE product_sizes SET quantity = quantity + $3 WHERE product_id = $1 AND size = $2`,
			ref.ProductID, ref.Size, qty)
	}
	if err != nil {
		return fmt.Errorf("increment %s: %w", ref, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", apperr.ErrProductNotFound, ref)
	}
	return nil
}

// GetProduct implements catalog.Lookup.
func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	var p catalog.Product
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, image, price, tax_rate, tracks_quantity, quantity FROM products WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.Image, &p.Price, &p.TaxRate, &p.TracksQuantity, &p.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", apperr.ErrProductNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT size, quantity FROM product_sizes WHERE product_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			size string
			qty  int
		)
		if err := rows.Scan(&size, &qty); err != nil {
			return nil, err
		}
		if p.Sizes == nil {
			p.Sizes = make(map[string]int)
		}
		p.Sizes[size] = qty
	}
	return &p, rows.Err()
}

// UpsertProduct seeds or replaces a catalog entry and its size counters.
func (s *PostgresStore) UpsertProduct(ctx context.Context, p catalog.Product) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO products (id, name, image, price, tax_rate, tracks_quantity, quantity)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, image = EXCLUDED.image, price = EXCLUDED.price,
		 tax_rate = EXCLUDED.tax_rate, tracks_quantity = EXCLUDED.tracks_quantity, quantity = EXCLUDED.quantity`,
		p.ID, p.Name, p.Image, p.Price, p.TaxRate, p.TracksQuantity, p.Quantity)
	if err != nil {
		return err
	}
	for size, qty := range p.Sizes {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO product_sizes (product_id, size, quantity) VALUES ($1, $2, $3)
			 ON CONFLICT (product_id, size) DO UPDATE SET quantity = EXCLUDED.quantity`,
			p.ID, size, qty)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}
