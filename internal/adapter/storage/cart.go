package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
)

var _ port.CartStore = (*CartRepository)(nil)

// CartRepository keeps cart entries in the cart_items table, one row per
// price, ordered by position.
type CartRepository struct {
	sqldb sqldb
}

func NewCartRepository(sqldb sqldb) CartRepository {
	return CartRepository{sqldb}
}

func (r CartRepository) LoadCart(
	ctx context.Context, cartID string,
) ([]domain.LineItem, error) {
	const op = "CartRepository.LoadCart"
	log := slog.With("op", op)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `
		SELECT
			price_id, quantity, available, product_id, product_name,
			currency, unit_amount, recurring_interval, recurring_interval_count
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY position ASC;`

	rows, err := r.sqldb.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", "err", err)
		}
	}()

	var items []domain.LineItem
	for rows.Next() {
		var (
			it            domain.LineItem
			available     sql.NullBool
			unitAmount    sql.NullInt64
			interval      sql.NullString
			intervalCount sql.NullInt64
		)
		err := rows.Scan(
			&it.ID, &it.Quantity, &available, &it.ProductID, &it.ProductName,
			&it.Currency, &unitAmount, &interval, &intervalCount,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to scan: %w", op, err)
		}

		if available.Valid {
			it.Available = &available.Bool
		}
		if unitAmount.Valid {
			it.UnitAmount = &unitAmount.Int64
		}
		if interval.Valid {
			it.Recurring = &domain.Recurring{
				Interval:      interval.String,
				IntervalCount: intervalCount.Int64,
			}
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return items, nil
}

// SaveCart replaces the stored entries of the cart in one transaction.
func (r CartRepository) SaveCart(
	ctx context.Context, cartID string, items []domain.LineItem,
) (saveErr error) {
	const op = "CartRepository.SaveCart"
	log := slog.With("op", op)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tx, err := r.sqldb.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin tx: %w", op, err)
	}

	defer func() {
		if saveErr == nil {
			if err := tx.Commit(); err != nil {
				saveErr = fmt.Errorf("%s: failed to commit: %w", op, err)
			}
			return
		}

		if err := tx.Rollback(); err != nil {
			log.Error("failed to rollback tx", "err", err)
		}
	}()

	_, err = tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1;`, cartID)
	if err != nil {
		return fmt.Errorf("%s: failed to clear: %w", op, err)
	}

	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO cart_items (
			cart_id, price_id, position, quantity, available,
			product_id, product_name, currency, unit_amount,
			recurring_interval, recurring_interval_count
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%s: failed to prepare stmt: %w", op, err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			log.Error("failed to close prepared stmt", "err", err)
		}
	}()

	for i, it := range items {
		var interval, intervalCount any
		if it.Recurring != nil {
			interval, intervalCount = it.Recurring.Interval, it.Recurring.IntervalCount
		}
		_, err := stmt.ExecContext(ctx,
			cartID, it.ID, i, it.Quantity, nullable(it.Available),
			it.ProductID, it.ProductName, it.Currency, nullable(it.UnitAmount),
			interval, intervalCount,
		)
		if err != nil {
			return fmt.Errorf("%s: failed to exec: %w", op, err)
		}
	}
	return nil
}

func (r CartRepository) DeleteCart(ctx context.Context, cartID string) error {
	const op = "CartRepository.DeleteCart"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err := r.sqldb.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1;`, cartID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r CartRepository) CartsReferencing(ctx context.Context, ref string) ([]string, error) {
	const op = "CartRepository.CartsReferencing"
	log := slog.With("op", op)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `
		SELECT DISTINCT cart_id
		FROM cart_items
		WHERE price_id = $1 OR product_id = $1
		ORDER BY cart_id ASC;`

	rows, err := r.sqldb.QueryContext(ctx, query, ref)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", "err", err)
		}
	}()

	var cartIDs []string
	for rows.Next() {
		var cartID string
		if err := rows.Scan(&cartID); err != nil {
			return nil, fmt.Errorf("%s: failed to scan: %w", op, err)
		}
		cartIDs = append(cartIDs, cartID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cartIDs, nil
}

// FlagUnavailable marks the entries of the cart referencing the price or
// product id and returns the number of entries that changed.
func (r CartRepository) FlagUnavailable(
	ctx context.Context, cartID, ref string,
) (int, error) {
	const op = "CartRepository.FlagUnavailable"

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	query := `
		UPDATE cart_items
		SET available = FALSE, updated_at = NOW()
		WHERE cart_id = $1
			AND (price_id = $2 OR product_id = $2)
			AND available IS DISTINCT FROM FALSE;`

	res, err := r.sqldb.ExecContext(ctx, query, cartID, ref)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(n), nil
}

func nullable[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}
