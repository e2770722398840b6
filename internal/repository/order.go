package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"restaurant-orders/internal/apperr"
	"restaurant-orders/internal/domain"
)

const orderColumns = `id, restaurant_id, status, pickup_option, created_at, updated_at,
	accepted_at, auto_cancel_at, estimated_pickup_time, cancellation_reason,
	customer_name, customer_email, items, total::text`

// OrderRepo represents order repository.
type OrderRepo struct {
	db DB
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(db DB) *OrderRepo {
	return &OrderRepo{db: db}
}

// ListByRestaurant returns every order of a restaurant, newest first.
func (r *OrderRepo) ListByRestaurant(ctx context.Context, restaurantID string) ([]domain.Order, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+orderColumns+`
        FROM orders
        WHERE restaurant_id = $1
        ORDER BY created_at DESC, id DESC
    `, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("list orders of %s: %w", restaurantID, err)
	}
	defer rows.Close()

	out := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders of %s: %w", restaurantID, err)
	}
	return out, nil
}

// SetOrderStatus locks the order row, checks the transition and writes the new status.
// Accepting stamps accepted_at; empty extra fields keep the stored values.
func (r *OrderRepo) SetOrderStatus(ctx context.Context, orderID string, to domain.Status, extra domain.StatusExtra) (domain.Order, error) {
	var out domain.Order
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&current)
		if err != nil {
			return fmt.Errorf("lock order %s: %w", orderID, err)
		}

		from := domain.Status(current).Normalize()
		if !domain.CanTransition(from, to) {
			return fmt.Errorf("order %s is %s, cannot become %s: %w", orderID, from, to, apperr.ErrConflict)
		}

		row := tx.QueryRow(ctx, `
            UPDATE orders
            SET status = $2,
                estimated_pickup_time = COALESCE(NULLIF($3, ''), estimated_pickup_time),
                cancellation_reason = COALESCE(NULLIF($4, ''), cancellation_reason),
                accepted_at = CASE WHEN $2 = 'accepted' THEN now() ELSE accepted_at END,
                updated_at = now()
            WHERE id = $1
            RETURNING `+orderColumns,
			orderID, string(to), extra.EstimatedPickupTime, extra.CancellationReason)
		out, err = scanOrder(row)
		if err != nil {
			return fmt.Errorf("update order %s: %w", orderID, err)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, orderError(orderID, err)
	}
	return out, nil
}

// withTx opens a transaction and executes fn within it.
func (r *OrderRepo) withTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback tx: %w (original error: %s)", rbErr, err.Error())
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o                     domain.Order
		status, pickup, total string
		acceptedAt, cancelAt  *time.Time
		items                 []byte
	)
	err := row.Scan(
		&o.ID, &o.RestaurantID, &status, &pickup, &o.CreatedAt, &o.UpdatedAt,
		&acceptedAt, &cancelAt, &o.EstimatedPickupTime, &o.CancellationReason,
		&o.CustomerName, &o.CustomerEmail, &items, &total,
	)
	if err != nil {
		return domain.Order{}, err
	}

	o.Status = domain.Status(status).Normalize()
	o.PickupOption = domain.PickupOption(pickup)
	o.AcceptedAt = acceptedAt
	o.AutoCancelAt = cancelAt
	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return domain.Order{}, fmt.Errorf("decode items of %s: %w", o.ID, err)
		}
	}
	if total != "" {
		if o.Total, err = decimal.NewFromString(total); err != nil {
			return domain.Order{}, fmt.Errorf("decode total of %s: %w", o.ID, err)
		}
	}
	return o, nil
}
