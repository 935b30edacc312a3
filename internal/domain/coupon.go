package domain

import (
	"math"
	"time"
)

type DiscountType string

const (
	DiscountPercentage  DiscountType = "PERCENTAGE"
	DiscountFixedAmount DiscountType = "FIXED_AMOUNT"
)

func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixedAmount
}

type Coupon struct {
	Code              string       `json:"code"`
	Description       string       `json:"description,omitempty"`
	DiscountType      DiscountType `json:"discountType"`
	DiscountValue     float64      `json:"discountValue"`
	MaxDiscountAmount float64      `json:"maxDiscountAmount,omitempty"`
	MinPurchaseAmount float64      `json:"minPurchaseAmount,omitempty"`
	MaxUses           int          `json:"maxUses"`
	UsedCount         int          `json:"usedCount"`
	ValidFrom         time.Time    `json:"validFrom"`
	ValidUntil        time.Time    `json:"validUntil"`
	IsActive          bool         `json:"isActive"`
	CreatedBy         string       `json:"createdBy,omitempty"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
}

// CouponChecks reports every validity predicate separately so clients can
// tell the user why a code was rejected.
type CouponChecks struct {
	IsActive             bool `json:"isActive"`
	HasStarted           bool `json:"hasStarted"`
	NotExpired           bool `json:"notExpired"`
	HasUsesLeft          bool `json:"hasUsesLeft"`
	MeetsMinimumPurchase bool `json:"meetsMinimumPurchase"`
}

func (c CouponChecks) Valid() bool {
	return c.IsActive && c.HasStarted && c.NotExpired && c.HasUsesLeft && c.MeetsMinimumPurchase
}

func (c *Coupon) Check(amount float64, now time.Time) CouponChecks {
	return CouponChecks{
		IsActive:             c.IsActive,
		HasStarted:           !now.Before(c.ValidFrom),
		NotExpired:           !now.After(c.ValidUntil),
		HasUsesLeft:          c.UsedCount < c.MaxUses,
		MeetsMinimumPurchase: c.MinPurchaseAmount <= 0 || amount >= c.MinPurchaseAmount,
	}
}

// Discount is the amount taken off price, capped by MaxDiscountAmount when set.
// It may exceed the price; PriceWith clamps the final price instead.
func (c *Coupon) Discount(price float64) float64 {
	if price <= 0 {
		return 0
	}
	var d float64
	switch c.DiscountType {
	case DiscountPercentage:
		d = price * c.DiscountValue / 100
	case DiscountFixedAmount:
		d = c.DiscountValue
	}
	if c.MaxDiscountAmount > 0 && d > c.MaxDiscountAmount {
		d = c.MaxDiscountAmount
	}
	return RoundMoney(math.Max(0, d))
}

type Quote struct {
	CourseID       string  `json:"courseId,omitempty"`
	CouponCode     string  `json:"couponCode,omitempty"`
	Price          float64 `json:"price"`
	DiscountAmount float64 `json:"discountAmount"`
	FinalPrice     float64 `json:"finalPrice"`
	Currency       string  `json:"currency"`
}

// PriceWith returns the quote for price with an optional coupon applied.
func PriceWith(price float64, c *Coupon) Quote {
	q := Quote{Price: RoundMoney(price), Currency: DefaultCurrency}
	if c != nil {
		q.CouponCode = c.Code
		q.DiscountAmount = c.Discount(price)
	}
	q.FinalPrice = RoundMoney(math.Max(0, price-q.DiscountAmount))
	return q
}

func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
