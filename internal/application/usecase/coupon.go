package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"learnplatform/internal/domain"
	"learnplatform/internal/infrastructure/repository"
	"learnplatform/internal/keys"
)

type CouponInput struct {
	Code              string
	Description       string
	DiscountType      domain.DiscountType
	DiscountValue     float64
	MaxDiscountAmount float64
	MinPurchaseAmount float64
	MaxUses           int
	ValidFrom         time.Time
	ValidUntil        time.Time
}

// CouponValidation explains whether a code applies to an amount, and if so
// what it takes off.
type CouponValidation struct {
	Valid          bool                `json:"valid"`
	Code           string              `json:"code"`
	Amount         float64             `json:"amount"`
	DiscountAmount float64             `json:"discountAmount"`
	FinalPrice     float64             `json:"finalPrice"`
	Checks         domain.CouponChecks `json:"checks"`
}

type CouponUseCase struct {
	coupons *repository.CouponRepository
	courses *repository.CourseRepository
	log     *zap.Logger
	now     func() time.Time
}

func NewCouponUseCase(coupons *repository.CouponRepository, courses *repository.CourseRepository, log *zap.Logger, now func() time.Time) *CouponUseCase {
	return &CouponUseCase{coupons: coupons, courses: courses, log: log, now: now}
}

func (uc *CouponUseCase) Create(ctx context.Context, createdBy string, in CouponInput) (*domain.Coupon, error) {
	code := keys.NormalizeCouponCode(in.Code)
	if code == "" {
		return nil, domain.Validation("Coupon code is required")
	}
	if err := validateDiscount(in.DiscountType, in.DiscountValue); err != nil {
		return nil, err
	}
	if in.MaxUses <= 0 {
		return nil, domain.Validation("Max uses must be positive")
	}
	now := uc.now()
	if in.ValidFrom.IsZero() {
		in.ValidFrom = now
	}
	if !in.ValidUntil.After(in.ValidFrom) {
		return nil, domain.Validation("Coupon must end after it starts")
	}
	c := &domain.Coupon{
		Code:              code,
		Description:       in.Description,
		DiscountType:      in.DiscountType,
		DiscountValue:     in.DiscountValue,
		MaxDiscountAmount: in.MaxDiscountAmount,
		MinPurchaseAmount: in.MinPurchaseAmount,
		MaxUses:           in.MaxUses,
		ValidFrom:         in.ValidFrom.UTC(),
		ValidUntil:        in.ValidUntil.UTC(),
		IsActive:          true,
		CreatedBy:         createdBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := uc.coupons.Create(ctx, c); err != nil {
		return nil, err
	}
	uc.log.Info("coupon created", zap.String("code", code), zap.String("by", createdBy))
	return c, nil
}

func validateDiscount(t domain.DiscountType, value float64) error {
	if !t.Valid() {
		return domain.Validation("Discount type must be PERCENTAGE or FIXED_AMOUNT")
	}
	if value <= 0 {
		return domain.Validation("Discount value must be positive")
	}
	if t == domain.DiscountPercentage && value > 100 {
		return domain.Validation("Percentage discount cannot exceed 100")
	}
	return nil
}

func (uc *CouponUseCase) List(ctx context.Context) ([]*domain.Coupon, error) {
	return uc.coupons.List(ctx)
}

func (uc *CouponUseCase) Get(ctx context.Context, code string) (*domain.Coupon, error) {
	return uc.coupons.Get(ctx, code)
}

// Update applies allow-listed changes. Dates arrive as RFC 3339 strings.
func (uc *CouponUseCase) Update(ctx context.Context, code string, changes map[string]any) (*domain.Coupon, error) {
	if len(changes) == 0 {
		return nil, domain.Validation("No fields to update")
	}
	for _, field := range []string{"validFrom", "validUntil"} {
		v, ok := changes[field]
		if !ok {
			continue
		}
		s, isString := v.(string)
		if !isString {
			return nil, domain.Validation("%s must be a date", field)
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, domain.Validation("%s must be an RFC 3339 date", field)
		}
		changes[field] = t.UTC()
	}
	current, err := uc.coupons.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	discountType, value := current.DiscountType, current.DiscountValue
	if v, ok := changes["discountType"].(string); ok {
		discountType = domain.DiscountType(strings.ToUpper(v))
		changes["discountType"] = string(discountType)
	}
	if v, ok := changes["discountValue"].(float64); ok {
		value = v
	}
	if err := validateDiscount(discountType, value); err != nil {
		return nil, err
	}
	return uc.coupons.Update(ctx, code, changes, uc.now())
}

// Deactivate keeps the coupon for payment history but stops new uses.
func (uc *CouponUseCase) Deactivate(ctx context.Context, code string) (*domain.Coupon, error) {
	return uc.coupons.Update(ctx, code, map[string]any{"isActive": false}, uc.now())
}

// Validate checks code against amount, or against the price of courseID when
// one is given.
func (uc *CouponUseCase) Validate(ctx context.Context, code string, amount float64, courseID string) (*CouponValidation, error) {
	if courseID != "" {
		course, err := uc.courses.Get(ctx, courseID)
		if err != nil {
			return nil, err
		}
		amount = course.Price
	}
	if amount < 0 {
		return nil, domain.Validation("Amount cannot be negative")
	}
	c, err := uc.coupons.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	checks := c.Check(amount, uc.now())
	res := &CouponValidation{
		Valid:      checks.Valid(),
		Code:       c.Code,
		Amount:     domain.RoundMoney(amount),
		FinalPrice: domain.RoundMoney(amount),
		Checks:     checks,
	}
	if res.Valid {
		q := domain.PriceWith(amount, c)
		res.DiscountAmount = q.DiscountAmount
		res.FinalPrice = q.FinalPrice
	}
	return res, nil
}
