package promo

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func percentCode(code string, rate int64, minOrderCents int64) Code {
	return Code{
		ID:            "id-" + code,
		Code:          code,
		Type:          DiscountPercent,
		Value:         decimal.NewFromInt(rate),
		MinOrderCents: minOrderCents,
		Active:        true,
	}
}

func TestValidate(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		code     Code
		uses     int
		subtotal int64
		wantErr  error
	}{
		{
			name:     "valid percent code",
			code:     percentCode("SAVE10", 10, 10000),
			subtotal: 20000,
		},
		{
			name:     "inactive code reported as not found",
			code:     Code{Code: "OLD", Type: DiscountFixed, Value: decimal.NewFromInt(5), Active: false},
			subtotal: 20000,
			wantErr:  ErrPromoNotFound,
		},
		{
			name: "expired code",
			code: Code{Code: "GONE", Type: DiscountFixed, Value: decimal.NewFromInt(5), Active: true,
				ExpiresAt: &past},
			subtotal: 20000,
			wantErr:  ErrPromoExpired,
		},
		{
			name: "future expiry still valid",
			code: Code{Code: "SOON", Type: DiscountFixed, Value: decimal.NewFromInt(5), Active: true,
				ExpiresAt: &future},
			subtotal: 20000,
		},
		{
			name:     "subtotal below minimum",
			code:     percentCode("SAVE10", 10, 10000),
			subtotal: 5000,
			wantErr:  ErrMinOrderNotMet,
		},
		{
			name: "usage limit reached",
			code: Code{Code: "LTD", Type: DiscountFixed, Value: decimal.NewFromInt(5), Active: true,
				MaxUses: intPtr(3)},
			uses:     3,
			subtotal: 20000,
			wantErr:  ErrPromoExhausted,
		},
		{
			name: "one use left",
			code: Code{Code: "LTD", Type: DiscountFixed, Value: decimal.NewFromInt(5), Active: true,
				MaxUses: intPtr(3)},
			uses:     2,
			subtotal: 20000,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.code, tc.uses, tc.subtotal, now)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDiscountCents(t *testing.T) {
	t.Run("ten percent of 200", func(t *testing.T) {
		// SAVE10 on a 200.00 subtotal discounts 20.00.
		c := percentCode("SAVE10", 10, 10000)
		assert.Equal(t, int64(2000), DiscountCents(c, 20000))
	})

	t.Run("percent rounds half up to a cent", func(t *testing.T) {
		c := percentCode("SAVE10", 10, 0)
		// 10% of 1.05 is 0.105 -> 0.11
		assert.Equal(t, int64(11), DiscountCents(c, 105))
	})

	t.Run("fixed amount", func(t *testing.T) {
		c := Code{Type: DiscountFixed, Value: decimal.NewFromInt(15), Active: true}
		assert.Equal(t, int64(1500), DiscountCents(c, 5000))
	})

	t.Run("fixed discount never exceeds subtotal", func(t *testing.T) {
		c := Code{Type: DiscountFixed, Value: decimal.NewFromInt(15), Active: true}
		assert.Equal(t, int64(1000), DiscountCents(c, 1000))
	})

	t.Run("hundred percent empties the order, not more", func(t *testing.T) {
		c := percentCode("FREE", 100, 0)
		assert.Equal(t, int64(5000), DiscountCents(c, 5000))
	})
}

func TestEnginePrice(t *testing.T) {
	store := &stubStore{
		codes: map[string]Code{
			"SAVE10": percentCode("SAVE10", 10, 10000),
		},
	}
	e := &Engine{Store: store}

	t.Run("no code passes subtotal through", func(t *testing.T) {
		p, err := e.Price(context.Background(), 5000, "")
		require.NoError(t, err)
		assert.Equal(t, int64(5000), p.TotalCents)
		assert.Nil(t, p.Promo)
	})

	t.Run("applies discount above minimum", func(t *testing.T) {
		p, err := e.Price(context.Background(), 20000, "SAVE10")
		require.NoError(t, err)
		assert.Equal(t, int64(2000), p.DiscountCents)
		assert.Equal(t, int64(18000), p.TotalCents)
		require.NotNil(t, p.Promo)
		assert.Equal(t, "SAVE10", p.Promo.Code)
	})

	t.Run("rejects below minimum", func(t *testing.T) {
		_, err := e.Price(context.Background(), 5000, "SAVE10")
		assert.ErrorIs(t, err, ErrMinOrderNotMet)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := e.Price(context.Background(), 5000, "NOPE")
		assert.ErrorIs(t, err, ErrPromoNotFound)
	})
}

type stubStore struct {
	codes map[string]Code
	uses  map[string]int
}

func (s *stubStore) GetCode(_ context.Context, code string) (Code, error) {
	c, ok := s.codes[code]
	if !ok {
		return Code{}, ErrPromoNotFound
	}
	return c, nil
}

func (s *stubStore) CountUses(_ context.Context, promoID string) (int, error) {
	return s.uses[promoID], nil
}
