package promo

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/safarshop/fulfillment/internal/money"
)

type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

type Code struct {
	ID            string
	Code          string
	Type          DiscountType
	Value         decimal.Decimal // percent rate or fixed currency amount
	MinOrderCents int64
	MaxUses       *int // nil = unlimited
	ExpiresAt     *time.Time
	Active        bool
}

var (
	ErrPromoNotFound  = errors.New("promo code not found")
	ErrPromoExpired   = errors.New("promo code expired")
	ErrPromoExhausted = errors.New("promo code usage limit reached")
	ErrMinOrderNotMet = errors.New("order total below promo minimum")
)

// Validate checks a code against a subtotal in the documented order: active,
// not expired, minimum met, uses remaining. uses is the current redemption
// count; callers holding the promo row lock get an exact answer.
func Validate(c Code, uses int, subtotalCents int64, now time.Time) error {
	if !c.Active {
		return ErrPromoNotFound
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return ErrPromoExpired
	}
	if subtotalCents < c.MinOrderCents {
		return fmt.Errorf("%w: need %d cents, have %d", ErrMinOrderNotMet, c.MinOrderCents, subtotalCents)
	}
	if c.MaxUses != nil && uses >= *c.MaxUses {
		return ErrPromoExhausted
	}
	return nil
}

// DiscountCents computes the discount for a subtotal. The discount never
// exceeds the subtotal.
func DiscountCents(c Code, subtotalCents int64) int64 {
	var d int64
	switch c.Type {
	case DiscountFixed:
		d = money.Cents(c.Value)
	case DiscountPercent:
		d = money.Percent(subtotalCents, c.Value)
	}
	if d > subtotalCents {
		d = subtotalCents
	}
	if d < 0 {
		d = 0
	}
	return d
}
