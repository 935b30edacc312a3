package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCouponDiscount(t *testing.T) {
	tests := []struct {
		name     string
		coupon   Coupon
		price    float64
		discount float64
		final    float64
	}{
		{
			name:     "percentage",
			coupon:   Coupon{DiscountType: DiscountPercentage, DiscountValue: 20},
			price:    100,
			discount: 20,
			final:    80,
		},
		{
			name:     "fixed amount capped by max discount",
			coupon:   Coupon{DiscountType: DiscountFixedAmount, DiscountValue: 15, MaxDiscountAmount: 10},
			price:    100,
			discount: 10,
			final:    90,
		},
		{
			name:     "percentage capped by max discount",
			coupon:   Coupon{DiscountType: DiscountPercentage, DiscountValue: 50, MaxDiscountAmount: 25},
			price:    200,
			discount: 25,
			final:    175,
		},
		{
			name:     "fixed amount larger than price clamps the final price",
			coupon:   Coupon{DiscountType: DiscountFixedAmount, DiscountValue: 500},
			price:    49.99,
			discount: 500,
			final:    0,
		},
		{
			name:     "percentage over a hundred",
			coupon:   Coupon{DiscountType: DiscountPercentage, DiscountValue: 150},
			price:    30,
			discount: 45,
			final:    0,
		},
		{
			name:     "free course",
			coupon:   Coupon{DiscountType: DiscountFixedAmount, DiscountValue: 10},
			price:    0,
			discount: 0,
			final:    0,
		},
		{
			name:     "rounds to cents",
			coupon:   Coupon{DiscountType: DiscountPercentage, DiscountValue: 33},
			price:    19.99,
			discount: 6.6,
			final:    13.39,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := PriceWith(tt.price, &tt.coupon)
			assert.InDelta(t, tt.discount, q.DiscountAmount, 0.001)
			assert.InDelta(t, tt.final, q.FinalPrice, 0.001)
			assert.GreaterOrEqual(t, q.FinalPrice, 0.0)
		})
	}
}

func TestPriceWithoutCoupon(t *testing.T) {
	q := PriceWith(59.5, nil)
	assert.Equal(t, 59.5, q.FinalPrice)
	assert.Zero(t, q.DiscountAmount)
	assert.Equal(t, DefaultCurrency, q.Currency)
}

func TestCouponCheck(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	base := func() Coupon {
		return Coupon{
			IsActive:   true,
			MaxUses:    10,
			UsedCount:  3,
			ValidFrom:  now.Add(-24 * time.Hour),
			ValidUntil: now.Add(24 * time.Hour),
		}
	}

	t.Run("valid", func(t *testing.T) {
		c := base()
		checks := c.Check(100, now)
		assert.True(t, checks.Valid())
	})

	t.Run("exhausted inside date window", func(t *testing.T) {
		c := base()
		c.UsedCount = c.MaxUses
		checks := c.Check(100, now)
		assert.False(t, checks.Valid())
		assert.False(t, checks.HasUsesLeft)
		assert.True(t, checks.HasStarted)
		assert.True(t, checks.NotExpired)
		assert.True(t, checks.IsActive)
	})

	t.Run("not yet valid", func(t *testing.T) {
		c := base()
		c.ValidFrom = now.Add(time.Minute)
		checks := c.Check(100, now)
		assert.False(t, checks.Valid())
		assert.False(t, checks.HasStarted)
		assert.True(t, checks.NotExpired)
	})

	t.Run("expired", func(t *testing.T) {
		c := base()
		c.ValidUntil = now.Add(-time.Minute)
		checks := c.Check(100, now)
		assert.False(t, checks.Valid())
		assert.False(t, checks.NotExpired)
	})

	t.Run("inactive", func(t *testing.T) {
		c := base()
		c.IsActive = false
		checks := c.Check(100, now)
		assert.False(t, checks.Valid())
		assert.False(t, checks.IsActive)
		assert.True(t, checks.HasUsesLeft)
	})

	t.Run("minimum purchase", func(t *testing.T) {
		c := base()
		c.MinPurchaseAmount = 50
		assert.False(t, c.Check(49.99, now).MeetsMinimumPurchase)
		assert.True(t, c.Check(50, now).MeetsMinimumPurchase)
	})
}
