package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-order-engine/internal/apperr"
	"github.com/example/ec-order-engine/internal/domain/order"
	"github.com/lib/pq"
)

const selectOrder = `SELECT document, version FROM orders`

// Create inserts a new order at version 1 together with its history.
func (s *PostgresStore) Create(ctx context.Context, o *order.Order) error {
	o.Version = 1
	doc, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, order_number, user_id, is_guest_order, status, payment_method, payment_status, is_paid, gateway_order_id, total_price, document, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		o.ID,
		o.OrderNumber,
		nullIfEmpty(o.UserID),
		o.IsGuestOrder,
		string(o.Status()),
		string(o.Payment.Method),
		string(o.Payment.Status),
		o.IsPaid,
		nullIfEmpty(o.Payment.GatewayOrderID),
		o.TotalPrice,
		doc,
		o.Version,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		o.Version = 0
		return fmt.Errorf("insert order: %w", err)
	}

	if err := appendHistory(ctx, tx, o); err != nil {
		o.Version = 0
		return err
	}

	if err := tx.Commit(); err != nil {
		o.Version = 0
		return err
	}
	return nil
}

// Update writes o if the stored version still equals o.Version, then
// bumps o.Version. New history entries are appended; old ones are never
// touched.
func (s *PostgresStore) Update(ctx context.Context, o *order.Order) error {
	expected := o.Version
	o.Version = expected + 1
	doc, err := json.Marshal(o)
	if err != nil {
		o.Version = expected
		return fmt.Errorf("marshal order: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		o.Version = expected
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $3, payment_status = $4, is_paid = $5, gateway_order_id = $6, document = $7, version = $8, updated_at = $9
		 WHERE id = $1 AND version = $2`,
		o.ID,
		expected,
		string(o.Status()),
		string(o.Payment.Status),
		o.IsPaid,
		nullIfEmpty(o.Payment.GatewayOrderID),
		doc,
		o.Version,
		o.UpdatedAt,
	)
	if err != nil {
		o.Version = expected
		return fmt.Errorf("update order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		o.Version = expected
		return err
	}
	if n == 0 {
		o.Version = expected
		return fmt.Errorf("%w: order %s at version %d", apperr.ErrConcurrentUpdate, o.ID, expected)
	}

	if err := appendHistory(ctx, tx, o); err != nil {
		o.Version = expected
		return err
	}

	if err := tx.Commit(); err != nil {
		o.Version = expected
		return err
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*order.Order, error) {
	return s.getOne(ctx, selectOrder+` WHERE id = $1`, id)
}

func (s *PostgresStore) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*order.Order, error) {
	return s.getOne(ctx, selectOrder+` WHERE gateway_order_id = $1`, gatewayOrderID)
}

func (s *PostgresStore) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*order.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		selectOrder+` WHERE status = $1 AND is_paid = FALSE AND payment_method <> $2 AND created_at < $3
		 ORDER BY created_at ASC LIMIT $4`,
		string(order.StatusPending),
		string(order.MethodCashOnDelivery),
		before,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PostgresStore) getOne(ctx context.Context, query string, arg any) (*order.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrOrderNotFound
	}
	return o, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		doc     []byte
		version int
	)
	if err := row.Scan(&doc, &version); err != nil {
		return nil, err
	}
	var o order.Order
	if err := json.Unmarshal(doc, &o); err != nil {
		return nil, fmt.Errorf("decode order document: %w", err)
	}
	o.Version = version
	return &o, nil
}

// appendHistory inserts every history entry; rows already stored are kept
// as they are.
func appendHistory(ctx context.Context, tx *sql.Tx, o *order.Order) error {
	for i, h := range o.History() {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO order_status_history (order_id, seq, status, note, created_at)
			 VALUES ($1, $2, $3, $4, $5) ON CONFLICT (order_id, seq) DO NOTHING`,
			o.ID, i, string(h.Status), h.Note, h.Timestamp,
		)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) {
				return fmt.Errorf("append history (%s): %w", pqErr.Code.Name(), err)
			}
			return fmt.Errorf("append history: %w", err)
		}
	}
	return nil
}
