package loyalty

import "time"

type Tier string

const (
	TierBronze Tier = "Bronze"
	TierSilver Tier = "Silver"
	TierGold   Tier = "Gold"
)

const (
	silverThreshold = 500
	goldThreshold   = 2000
)

type Account struct {
	UserID        string
	CurrentPoints int64
	TotalEarned   int64
	CurrentTier   Tier
	UpdatedAt     time.Time
}

// TierFor derives the tier purely from lifetime points earned. Spending
// points reduces the balance, never the tier.
func TierFor(totalEarned int64) Tier {
	switch {
	case totalEarned >= goldThreshold:
		return TierGold
	case totalEarned >= silverThreshold:
		return TierSilver
	default:
		return TierBronze
	}
}

// PointsFor converts an order total in cents into points: rate points per
// whole currency unit, fractions floored.
func PointsFor(totalCents, rate int64) int64 {
	return totalCents / 100 * rate
}
