package promo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repo struct{ DB *pgxpool.Pool }

// Redemption is one recorded use of a promo code tied to one order.
type Redemption struct {
	PromoID       string
	UserID        string
	OrderID       string
	DiscountCents int64
}

func (r *Repo) GetCode(ctx context.Context, code string) (Code, error) {
	var (
		c     Code
		dtype string
		value string
	)
	err := r.DB.QueryRow(ctx, `
		SELECT id, code, discount_type, discount_value::text, min_order_cents, max_uses, expires_at, is_active
		FROM promo_codes WHERE code=$1`, code).
		Scan(&c.ID, &c.Code, &dtype, &value, &c.MinOrderCents, &c.MaxUses, &c.ExpiresAt, &c.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return Code{}, ErrPromoNotFound
	}
	if err != nil {
		return Code{}, err
	}
	c.Type = normalizeType(dtype)
	if c.Value, err = decimal.NewFromString(value); err != nil {
		return Code{}, err
	}
	return c, nil
}

func (r *Repo) CountUses(ctx context.Context, promoID string) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM promo_uses WHERE promo_code_id=$1`, promoID).Scan(&n)
	return n, err
}

// RedeemTx inserts the redemption row inside the caller's checkout
// transaction, re-checking the usage limit under the promo row lock. Counting
// rows under the lock is the usage counter; there is no mutable counter field
// to lose updates on.
func RedeemTx(ctx context.Context, tx pgx.Tx, red Redemption) error {
	var (
		maxUses   *int
		active    bool
		expiresAt *time.Time
	)
	err := tx.QueryRow(ctx, `
		SELECT max_uses, is_active, expires_at FROM promo_codes WHERE id=$1 FOR UPDATE`, red.PromoID).
		Scan(&maxUses, &active, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrPromoNotFound
	}
	if err != nil {
		return err
	}
	if !active {
		return ErrPromoNotFound
	}
	if expiresAt != nil && !expiresAt.After(time.Now()) {
		return ErrPromoExpired
	}
	if maxUses != nil {
		var uses int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM promo_uses WHERE promo_code_id=$1`, red.PromoID).Scan(&uses); err != nil {
			return err
		}
		if uses >= *maxUses {
			return ErrPromoExhausted
		}
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO promo_uses(promo_code_id, user_id, order_id, discount_cents)
		VALUES ($1,$2,$3,$4)`,
		red.PromoID, red.UserID, red.OrderID, red.DiscountCents)
	return err
}

// The original storefront stored "percentage"; the engine speaks "percent".
func normalizeType(s string) DiscountType {
	if s == "percentage" {
		return DiscountPercent
	}
	return DiscountType(s)
}
