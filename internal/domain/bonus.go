package domain

import "github.com/shopspring/decimal"

// BonusTier maps a minimum recharge amount to a bonus rate.
type BonusTier struct {
	Threshold   decimal.Decimal
	Rate        decimal.Decimal
	Description string
}

// BonusPolicy computes recharge bonuses from an ordered set of tiers.
// Tiers must be sorted by descending threshold; the first tier whose
// threshold the amount meets wins.
type BonusPolicy struct {
	Tiers []BonusTier
}

// DefaultBonusPolicy returns the standard recharge bonus tiers:
// 10% at or above ₹1000, 5% between ₹500 and ₹999.99.
func DefaultBonusPolicy() BonusPolicy {
	return BonusPolicy{
		Tiers: []BonusTier{
			{
				Threshold:   decimal.NewFromInt(1000),
				Rate:        decimal.NewFromFloat(0.10),
				Description: "10% bonus on recharge above ₹1000",
			},
			{
				Threshold:   decimal.NewFromInt(500),
				Rate:        decimal.NewFromFloat(0.05),
				Description: "5% bonus on recharge between ₹500-₹999",
			},
		},
	}
}

// Calculate returns the bonus amount and description for a recharge amount.
// Amounts below every tier earn no bonus and an empty description.
// The bonus is rounded half-up to 2 fraction digits.
func (p BonusPolicy) Calculate(amount Money) (Money, string) {
	d := amount.Decimal()
	for _, tier := range p.Tiers {
		if d.GreaterThanOrEqual(tier.Threshold) {
			return FromDecimal(d.Mul(tier.Rate)), tier.Description
		}
	}
	return Money{}, ""
}
