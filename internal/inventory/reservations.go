package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Reservations holds temporary claims on stock between order creation and
// payment resolution. A reservation never touches product.stock; only Commit
// converts the hold into a real decrement plus a sale movement.
type Reservations struct{ DB *pgxpool.Pool }

// ReserveTx checks availability and inserts reservation rows inside the
// caller's transaction. Products are locked in id order so two multi-line
// reserves cannot deadlock; two reserves for the same product serialize on the
// product row lock, reserves for different products proceed independently.
func ReserveTx(ctx context.Context, tx pgx.Tx, orderID string, lines []Line, ttl time.Duration) error {
	sorted := make([]Line, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	expiresAt := time.Now().Add(ttl)
	var shorts []Shortage
	for _, ln := range sorted {
		var stock int
		err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 AND is_active FOR UPDATE`, ln.ProductID).Scan(&stock)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrProductNotFound, ln.ProductID)
		}
		if err != nil {
			return err
		}

		var reserved int
		if err := tx.QueryRow(ctx, `
			SELECT COALESCE(SUM(quantity),0) FROM stock_reservations
			WHERE product_id=$1 AND expires_at > now()`, ln.ProductID).Scan(&reserved); err != nil {
			return err
		}

		available := stock - reserved
		if ln.Qty > available {
			shorts = append(shorts, Shortage{ProductID: ln.ProductID, Requested: ln.Qty, Available: available})
			continue
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO stock_reservations(product_id, order_id, quantity, expires_at)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (order_id, product_id) DO NOTHING`,
			ln.ProductID, orderID, ln.Qty, expiresAt); err != nil {
			return err
		}
	}
	if len(shorts) > 0 {
		return &InsufficientStockError{Shortages: shorts}
	}
	return nil
}

// CommitTx converts the order's reservations into sale movements and stock
// decrements, then deletes the rows. wantLines is the order's line count: if
// any reservation lapsed before payment the commit refuses rather than
// oversell, and the caller surfaces ErrReservationExpired.
func CommitTx(ctx context.Context, tx pgx.Tx, orderID string, wantLines int) error {
	rows, err := tx.Query(ctx, `
		SELECT product_id, quantity FROM stock_reservations
		WHERE order_id=$1 AND expires_at > now()
		ORDER BY product_id
		FOR UPDATE`, orderID)
	if err != nil {
		return err
	}
	var lines []Line
	for rows.Next() {
		var ln Line
		if err := rows.Scan(&ln.ProductID, &ln.Qty); err != nil {
			rows.Close()
			return err
		}
		lines = append(lines, ln)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(lines) != wantLines {
		return ErrReservationExpired
	}

	for _, ln := range lines {
		if err := RecordTx(ctx, tx, ln.ProductID, MovementSale, -ln.Qty, "order "+orderID, nil, nil); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE products SET sales_count = sales_count + $2 WHERE id=$1`, ln.ProductID, ln.Qty); err != nil {
			return err
		}
	}
	_, err = tx.Exec(ctx, `DELETE FROM stock_reservations WHERE order_id=$1`, orderID)
	return err
}

// ReleaseTx drops the order's holds. Stock was never decremented for an
// unconfirmed reservation, so there is nothing to add back and no movement row.
func ReleaseTx(ctx context.Context, tx pgx.Tx, orderID string) error {
	_, err := tx.Exec(ctx, `DELETE FROM stock_reservations WHERE order_id=$1`, orderID)
	return err
}

// SweepExpired releases every reservation whose expiry has passed. SKIP LOCKED
// leaves rows alone while a concurrent Commit holds them, so the sweep can run
// at any time alongside reservation traffic.
func (r *Reservations) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id FROM stock_reservations
		WHERE expires_at < $1
		FOR UPDATE SKIP LOCKED`, now)
	if err != nil {
		return 0, err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM stock_reservations WHERE id = ANY($1)`, ids); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}
