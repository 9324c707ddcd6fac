package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBonusPolicy_Calculate(t *testing.T) {
	policy := DefaultBonusPolicy()

	tests := []struct {
		name            string
		amountPaise     int64
		wantBonusPaise  int64
		wantDescription string
	}{
		{"at upper threshold", 100_000, 10_000, "10% bonus on recharge above ₹1000"},
		{"above upper threshold", 250_000, 25_000, "10% bonus on recharge above ₹1000"},
		{"just below upper threshold rounds half-up", 99_999, 5_000, "5% bonus on recharge between ₹500-₹999"},
		{"at lower threshold", 50_000, 2_500, "5% bonus on recharge between ₹500-₹999"},
		{"just below lower threshold", 49_999, 0, ""},
		{"small recharge", 1, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bonus, description := policy.Calculate(FromPaise(tt.amountPaise))
			assert.Equal(t, tt.wantBonusPaise, bonus.Paise)
			assert.Equal(t, tt.wantDescription, description)
		})
	}
}

func TestBonusPolicy_Calculate_RoundingHalfUp(t *testing.T) {
	policy := DefaultBonusPolicy()

	// 5% of 999.99 = 49.9995, which rounds half-up to 50.00.
	bonus, _ := policy.Calculate(FromPaise(99_999))
	assert.Equal(t, "50.00", bonus.Decimal().StringFixed(2))

	// 5% of 500.10 = 25.005, which rounds half-up to 25.01.
	bonus, _ = policy.Calculate(FromPaise(50_010))
	assert.Equal(t, int64(2_501), bonus.Paise)
}

func TestBonusPolicy_Calculate_CustomTiers(t *testing.T) {
	policy := BonusPolicy{
		Tiers: []BonusTier{
			{Threshold: decimal.NewFromInt(100), Rate: decimal.NewFromFloat(0.02), Description: "2% promo"},
		},
	}

	bonus, description := policy.Calculate(FromPaise(10_000))
	assert.Equal(t, int64(200), bonus.Paise)
	assert.Equal(t, "2% promo", description)

	bonus, description = policy.Calculate(FromPaise(9_999))
	assert.True(t, bonus.IsZero())
	assert.Empty(t, description)
}
