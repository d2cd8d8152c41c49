// Package money fixes the engine's monetary representation: amounts move
// through the system as integer cents, and fractional arithmetic (percent
// discounts, rates) goes through shopspring/decimal so nothing ever touches a
// float.
package money

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Cents converts a decimal currency amount to cents, rounding half-up.
func Cents(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// FromCents converts cents back to a decimal currency amount.
func FromCents(c int64) decimal.Decimal {
	return decimal.NewFromInt(c).Div(hundred)
}

// Percent applies rate% to an amount in cents, rounding half-up to a cent.
func Percent(cents int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(cents).Mul(rate).Div(hundred).Round(0).IntPart()
}
