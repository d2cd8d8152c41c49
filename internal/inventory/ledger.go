package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	MovementSale      = "sale"
	MovementRestock   = "restock"
	MovementStocktake = "stocktake"
	MovementRefund    = "refund"
)

// Line is a (product, quantity) pair moving through reservations and the
// movement ledger.
type Line struct {
	ProductID string
	Qty       int
}

// Ledger is the append-only record of stock deltas. product.stock is only
// ever written here and in Reservations.Commit; every write produces exactly
// one movement row.
type Ledger struct{ DB *pgxpool.Pool }

// RecordTx applies a stock delta under the product row lock and appends the
// movement row. new stock must stay >= 0.
func RecordTx(ctx context.Context, tx pgx.Tx, productID, movementType string, delta int, reason string, supplierID *string, costCents *int64) error {
	var old int
	err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 FOR UPDATE`, productID).Scan(&old)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if err != nil {
		return err
	}
	now := old + delta
	if now < 0 {
		return fmt.Errorf("movement %s on %s would drive stock negative (%d%+d)", movementType, productID, old, delta)
	}
	if _, err := tx.Exec(ctx, `UPDATE products SET stock=$2, updated_at=now() WHERE id=$1`, productID, now); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO inventory_movements(product_id, movement_type, quantity_change, old_quantity, new_quantity, supplier_id, cost_cents, reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		productID, movementType, delta, old, now, supplierID, costCents, reason)
	return err
}

// Restock is the admin/supplier entry point: adds quantity and records why.
func (l *Ledger) Restock(ctx context.Context, productID string, qty int, supplierID *string, costCents *int64) error {
	if qty <= 0 {
		return fmt.Errorf("restock quantity must be positive, got %d", qty)
	}
	return l.inTx(ctx, func(tx pgx.Tx) error {
		return RecordTx(ctx, tx, productID, MovementRestock, qty, "supplier delivery", supplierID, costCents)
	})
}

// Adjust reconciles on-hand stock against a physical count.
func (l *Ledger) Adjust(ctx context.Context, productID string, counted int, reason string) error {
	if counted < 0 {
		return fmt.Errorf("counted quantity must be >= 0, got %d", counted)
	}
	return l.inTx(ctx, func(tx pgx.Tx) error {
		var current int
		err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 FOR UPDATE`, productID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
		}
		if err != nil {
			return err
		}
		delta := counted - current
		if delta == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, `UPDATE products SET stock=$2, updated_at=now() WHERE id=$1`, productID, counted); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO inventory_movements(product_id, movement_type, quantity_change, old_quantity, new_quantity, reason)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			productID, MovementStocktake, delta, current, counted, reason)
		return err
	})
}

// RefundTx re-increments stock for the given lines with refund movements.
// Policy: a refunded order returns its units to inventory; the financial
// reversal is the payment provider's concern.
func RefundTx(ctx context.Context, tx pgx.Tx, lines []Line, reason string) error {
	for _, ln := range lines {
		if err := RecordTx(ctx, tx, ln.ProductID, MovementRefund, ln.Qty, reason, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
