package promo

import (
	"context"
	"time"
)

// Store is the persistence the engine prices against.
type Store interface {
	GetCode(ctx context.Context, code string) (Code, error)
	CountUses(ctx context.Context, promoID string) (int, error)
}

type Engine struct {
	Store Store
}

// Pricing is the result of applying (or not applying) a code to a subtotal.
type Pricing struct {
	SubtotalCents int64
	DiscountCents int64
	TotalCents    int64
	Promo         *Code // nil when no code was applied
}

// Price validates the code and computes the discounted total. The usage count
// read here is a pre-check; the authoritative check happens again in RedeemTx
// under the promo row lock, so a code with max_uses = N is never redeemed more
// than N times even under concurrent checkouts.
func (e *Engine) Price(ctx context.Context, subtotalCents int64, code string) (Pricing, error) {
	if code == "" {
		return Pricing{SubtotalCents: subtotalCents, TotalCents: subtotalCents}, nil
	}
	c, err := e.Store.GetCode(ctx, code)
	if err != nil {
		return Pricing{}, err
	}
	uses, err := e.Store.CountUses(ctx, c.ID)
	if err != nil {
		return Pricing{}, err
	}
	if err := Validate(c, uses, subtotalCents, time.Now()); err != nil {
		return Pricing{}, err
	}
	d := DiscountCents(c, subtotalCents)
	return Pricing{
		SubtotalCents: subtotalCents,
		DiscountCents: d,
		TotalCents:    subtotalCents - d,
		Promo:         &c,
	}, nil
}
