package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/safarshop/fulfillment/internal/inventory"
	"github.com/safarshop/fulfillment/internal/loyalty"
	"github.com/safarshop/fulfillment/internal/promo"
	"github.com/safarshop/fulfillment/internal/shipping"
)

var ErrOrderNotFound = errors.New("order not found")

// Repo is the pgx-backed Store. PointsPerUnit is the loyalty accrual rate:
// points credited per whole currency unit of the paid total.
type Repo struct {
	DB            *pgxpool.Pool
	PointsPerUnit int64
}

// IsTransient reports lock/serialization conflicts that are safe to retry as
// a whole operation.
func IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03": // serialization failure, deadlock, lock not available
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Checkout prices, reserves and persists the order in one transaction. Any
// failure leaves nothing behind. Replays by external id short-circuit to the
// stored order.
func (r *Repo) Checkout(ctx context.Context, in CheckoutInput, price PriceFunc) (Order, bool, error) {
	if ord, err := r.byExternalID(ctx, in.ExternalID); err == nil {
		return ord, true, nil
	} else if !errors.Is(err, ErrOrderNotFound) {
		return Order{}, false, err
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Capture prices at purchase time from the products table; the client is
	// never trusted with amounts.
	prices := map[string]int64{}
	ids := make([]string, 0, len(in.Lines))
	for _, ln := range in.Lines {
		ids = append(ids, ln.ProductID)
	}
	rows, err := tx.Query(ctx, `SELECT id, price_cents FROM products WHERE id = ANY($1) AND is_active`, ids)
	if err != nil {
		return Order{}, false, err
	}
	for rows.Next() {
		var id string
		var cents int64
		if err := rows.Scan(&id, &cents); err != nil {
			rows.Close()
			return Order{}, false, err
		}
		prices[id] = cents
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Order{}, false, err
	}

	var subtotal int64
	items := make([]Item, 0, len(in.Lines))
	for _, ln := range in.Lines {
		cents, ok := prices[ln.ProductID]
		if !ok {
			return Order{}, false, fmt.Errorf("%w: %s", inventory.ErrProductNotFound, ln.ProductID)
		}
		subtotal += cents * int64(ln.Qty)
		items = append(items, Item{ProductID: ln.ProductID, Qty: ln.Qty, PriceCents: cents})
	}

	pricing, err := price(ctx, subtotal, in.PromoCode)
	if err != nil {
		return Order{}, false, err
	}

	ord := Order{
		ID:                 uuid.NewString(),
		ExternalID:         in.ExternalID,
		UserID:             in.UserID,
		Status:             StatusPending,
		PaymentStatus:      PaymentPending,
		SubtotalCents:      pricing.SubtotalCents,
		PromoDiscountCents: pricing.DiscountCents,
		DeliveryCostCents:  in.DeliveryCostCents,
		TotalCents:         pricing.TotalCents + in.DeliveryCostCents,
		DeliveryAddress:    in.DeliveryAddress,
		DeliveryPhone:      in.DeliveryPhone,
		Items:              items,
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO orders(id, external_id, user_id, status, payment_status, subtotal_cents,
			promo_discount_cents, delivery_cost_cents, total_cents, delivery_address, delivery_phone)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		ord.ID, ord.ExternalID, ord.UserID, string(ord.Status), string(ord.PaymentStatus),
		ord.SubtotalCents, ord.PromoDiscountCents, ord.DeliveryCostCents, ord.TotalCents,
		ord.DeliveryAddress, ord.DeliveryPhone); err != nil {
		// Two concurrent checkouts with the same external id both pass the
		// pre-check; the loser hits the unique index and replays the
		// winner's order.
		if isUniqueViolation(err) {
			_ = tx.Rollback(ctx)
			if ord, rerr := r.byExternalID(ctx, in.ExternalID); rerr == nil {
				return ord, true, nil
			}
		}
		return Order{}, false, err
	}
	for _, it := range items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, quantity, price_cents)
			VALUES ($1,$2,$3,$4)`,
			ord.ID, it.ProductID, it.Qty, it.PriceCents); err != nil {
			return Order{}, false, err
		}
	}

	// Redemption is atomic with order creation: a failed checkout never
	// consumes a use.
	if pricing.Promo != nil {
		if err := promo.RedeemTx(ctx, tx, promo.Redemption{
			PromoID:       pricing.Promo.ID,
			UserID:        ord.UserID,
			OrderID:       ord.ID,
			DiscountCents: pricing.DiscountCents,
		}); err != nil {
			return Order{}, false, err
		}
	}

	if err := inventory.ReserveTx(ctx, tx, ord.ID, in.Lines, in.ReservationTTL); err != nil {
		return Order{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, false, err
	}
	return ord, false, nil
}

func (r *Repo) ConfirmPayment(ctx context.Context, orderID, paymentRef string) (ConfirmResult, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ConfirmResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ord, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return ConfirmResult{}, err
	}
	if ord.Status == StatusPaid {
		return ConfirmResult{Order: ord, AlreadyPaid: true}, tx.Commit(ctx)
	}
	if ord.Status != StatusPending {
		return ConfirmResult{}, &InvalidTransitionError{OrderID: orderID, From: ord.Status, To: StatusPaid}
	}

	var itemCount int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM order_items WHERE order_id=$1`, orderID).Scan(&itemCount); err != nil {
		return ConfirmResult{}, err
	}
	if err := inventory.CommitTx(ctx, tx, orderID, itemCount); err != nil {
		return ConfirmResult{}, err
	}

	points := loyalty.PointsFor(ord.TotalCents, r.PointsPerUnit)
	if points > 0 {
		if err := loyalty.AccrueTx(ctx, tx, ord.UserID, points); err != nil {
			return ConfirmResult{}, err
		}
	}

	shp, err := shipping.OpenTx(ctx, tx, orderID)
	if err != nil {
		return ConfirmResult{}, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2, payment_status=$3, payment_ref=$4, updated_at=now()
		WHERE id=$1`,
		orderID, string(StatusPaid), string(PaymentPaid), paymentRef); err != nil {
		return ConfirmResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ConfirmResult{}, err
	}

	ord.Status = StatusPaid
	ord.PaymentStatus = PaymentPaid
	ord.PaymentRef = paymentRef
	return ConfirmResult{Order: ord, PointsAccrued: points, TrackingNumber: shp.TrackingNumber}, nil
}

func (r *Repo) Cancel(ctx context.Context, orderID, reason string) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ord, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return Order{}, err
	}
	if ord.Status != StatusPending {
		return Order{}, &InvalidTransitionError{OrderID: orderID, From: ord.Status, To: StatusCancelled}
	}
	// Stock was never decremented for the holds, so releasing them is the
	// whole reversal.
	if err := inventory.ReleaseTx(ctx, tx, orderID); err != nil {
		return Order{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`,
		orderID, string(StatusCancelled)); err != nil {
		return Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	ord.Status = StatusCancelled
	return ord, nil
}

func (r *Repo) Refund(ctx context.Context, orderID string) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ord, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return Order{}, err
	}
	if ord.Status != StatusPaid {
		return Order{}, &InvalidTransitionError{OrderID: orderID, From: ord.Status, To: StatusRefunded}
	}

	lines, err := itemLines(ctx, tx, orderID)
	if err != nil {
		return Order{}, err
	}
	if err := inventory.RefundTx(ctx, tx, lines, "refund order "+orderID); err != nil {
		return Order{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, payment_status=$3, updated_at=now() WHERE id=$1`,
		orderID, string(StatusRefunded), string(PaymentRefunded)); err != nil {
		return Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	ord.Status = StatusRefunded
	ord.PaymentStatus = PaymentRefunded
	return ord, nil
}

func (r *Repo) Advance(ctx context.Context, orderID string, to Status) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ord, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !CanTransition(ord.Status, to) {
		return Order{}, &InvalidTransitionError{OrderID: orderID, From: ord.Status, To: to}
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`,
		orderID, string(to)); err != nil {
		return Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	ord.Status = to
	return ord, nil
}

func (r *Repo) Get(ctx context.Context, orderID string) (Order, error) {
	ord, err := scanOrder(r.DB.QueryRow(ctx, selectOrder+` WHERE id=$1`, orderID))
	if err != nil {
		return Order{}, err
	}
	rows, err := r.DB.Query(ctx, `
		SELECT product_id, quantity, price_cents FROM order_items WHERE order_id=$1 ORDER BY product_id`, orderID)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Qty, &it.PriceCents); err != nil {
			return Order{}, err
		}
		ord.Items = append(ord.Items, it)
	}
	return ord, rows.Err()
}

const selectOrder = `
	SELECT id, external_id, user_id, status, payment_status, COALESCE(payment_ref,''),
		subtotal_cents, promo_discount_cents, delivery_cost_cents, total_cents,
		COALESCE(delivery_address,''), COALESCE(delivery_phone,''), created_at, updated_at
	FROM orders`

func scanOrder(row pgx.Row) (Order, error) {
	var ord Order
	var status, payStatus string
	err := row.Scan(&ord.ID, &ord.ExternalID, &ord.UserID, &status, &payStatus, &ord.PaymentRef,
		&ord.SubtotalCents, &ord.PromoDiscountCents, &ord.DeliveryCostCents, &ord.TotalCents,
		&ord.DeliveryAddress, &ord.DeliveryPhone, &ord.CreatedAt, &ord.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, err
	}
	ord.Status = Status(status)
	ord.PaymentStatus = PaymentStatus(payStatus)
	return ord, nil
}

func (r *Repo) byExternalID(ctx context.Context, externalID string) (Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, selectOrder+` WHERE external_id=$1`, externalID))
}

func lockOrder(ctx context.Context, tx pgx.Tx, orderID string) (Order, error) {
	return scanOrder(tx.QueryRow(ctx, selectOrder+` WHERE id=$1 FOR UPDATE`, orderID))
}

func itemLines(ctx context.Context, tx pgx.Tx, orderID string) ([]inventory.Line, error) {
	rows, err := tx.Query(ctx, `
		SELECT product_id, quantity FROM order_items WHERE order_id=$1 ORDER BY product_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []inventory.Line
	for rows.Next() {
		var ln inventory.Line
		if err := rows.Scan(&ln.ProductID, &ln.Qty); err != nil {
			return nil, err
		}
		lines = append(lines, ln)
	}
	return lines, rows.Err()
}
