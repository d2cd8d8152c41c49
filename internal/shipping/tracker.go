package shipping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Shipment struct {
	OrderID        string
	TrackingNumber string
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

var ErrShipmentNotFound = errors.New("shipment not found")

// Tracker owns shipment records, one per paid order.
type Tracker struct{ DB *pgxpool.Pool }

// OpenTx creates the shipment inside the payment-confirmation transaction so
// a paid order can never lack one. The unique order_id constraint makes a
// second open for the same order an error, which ConfirmPayment's idempotency
// check prevents from ever being reached.
func OpenTx(ctx context.Context, tx pgx.Tx, orderID string) (Shipment, error) {
	s := Shipment{
		OrderID:        orderID,
		TrackingNumber: "TRK-" + uuid.NewString(),
		Status:         StatusCreated,
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO shipments(order_id, tracking_number, status)
		VALUES ($1,$2,$3)`,
		s.OrderID, s.TrackingNumber, string(s.Status))
	if err != nil {
		return Shipment{}, fmt.Errorf("open shipment for order %s: %w", orderID, err)
	}
	return s, nil
}

// Advance moves a shipment forward. Repeating the current status is a no-op
// so duplicate tracking events from the provider are harmless; anything else
// out of order is an InvalidTransitionError.
func (t *Tracker) Advance(ctx context.Context, trackingNumber string, next Status) (Shipment, error) {
	tx, err := t.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Shipment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var s Shipment
	var cur string
	err = tx.QueryRow(ctx, `
		SELECT order_id, tracking_number, status, created_at, updated_at
		FROM shipments WHERE tracking_number=$1 FOR UPDATE`, trackingNumber).
		Scan(&s.OrderID, &s.TrackingNumber, &cur, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Shipment{}, ErrShipmentNotFound
	}
	if err != nil {
		return Shipment{}, err
	}
	s.Status = Status(cur)

	if s.Status == next {
		return s, tx.Commit(ctx)
	}
	if !CanAdvance(s.Status, next) {
		return Shipment{}, &InvalidTransitionError{TrackingNumber: trackingNumber, From: s.Status, To: next}
	}
	if _, err := tx.Exec(ctx, `UPDATE shipments SET status=$2, updated_at=now() WHERE tracking_number=$1`,
		trackingNumber, string(next)); err != nil {
		return Shipment{}, err
	}
	s.Status = next
	return s, tx.Commit(ctx)
}

func (t *Tracker) ByOrder(ctx context.Context, orderID string) (Shipment, error) {
	var s Shipment
	var cur string
	err := t.DB.QueryRow(ctx, `
		SELECT order_id, tracking_number, status, created_at, updated_at
		FROM shipments WHERE order_id=$1`, orderID).
		Scan(&s.OrderID, &s.TrackingNumber, &cur, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Shipment{}, ErrShipmentNotFound
	}
	if err != nil {
		return Shipment{}, err
	}
	s.Status = Status(cur)
	return s, nil
}
