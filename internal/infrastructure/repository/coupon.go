package repository

import (
	"context"
	"fmt"
	"time"

	"learnplatform/internal/domain"
	"learnplatform/internal/infrastructure/store"
	"learnplatform/internal/keys"
)

type couponRecord struct {
	PK                string    `dynamodbav:"PK"`
	SK                string    `dynamodbav:"SK"`
	GSI3PK            string    `dynamodbav:"GSI3PK"`
	GSI3SK            string    `dynamodbav:"GSI3SK"`
	EntityType        string    `dynamodbav:"EntityType"`
	Code              string    `dynamodbav:"code"`
	Description       string    `dynamodbav:"description,omitempty"`
	DiscountType      string    `dynamodbav:"discountType"`
	DiscountValue     float64   `dynamodbav:"discountValue"`
	MaxDiscountAmount float64   `dynamodbav:"maxDiscountAmount"`
	MinPurchaseAmount float64   `dynamodbav:"minPurchaseAmount"`
	MaxUses           int       `dynamodbav:"maxUses"`
	UsedCount         int       `dynamodbav:"usedCount"`
	ValidFrom         time.Time `dynamodbav:"validFrom"`
	ValidUntil        time.Time `dynamodbav:"validUntil"`
	IsActive          bool      `dynamodbav:"isActive"`
	CreatedBy         string    `dynamodbav:"createdBy,omitempty"`
	CreatedAt         time.Time `dynamodbav:"createdAt"`
	UpdatedAt         time.Time `dynamodbav:"updatedAt"`
}

func toCouponRecord(c *domain.Coupon) *couponRecord {
	return &couponRecord{
		PK:                keys.CouponPK(c.Code),
		SK:                keys.Metadata,
		GSI3PK:            keys.EntityGSI3PK(keys.TypeCoupon),
		GSI3SK:            keys.TimeKey(c.CreatedAt),
		EntityType:        keys.TypeCoupon,
		Code:              keys.NormalizeCouponCode(c.Code),
		Description:       c.Description,
		DiscountType:      string(c.DiscountType),
		DiscountValue:     c.DiscountValue,
		MaxDiscountAmount: c.MaxDiscountAmount,
		MinPurchaseAmount: c.MinPurchaseAmount,
		MaxUses:           c.MaxUses,
		UsedCount:         c.UsedCount,
		ValidFrom:         c.ValidFrom,
		ValidUntil:        c.ValidUntil,
		IsActive:          c.IsActive,
		CreatedBy:         c.CreatedBy,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

func toDomainCoupon(r *couponRecord) *domain.Coupon {
	return &domain.Coupon{
		Code:              r.Code,
		Description:       r.Description,
		DiscountType:      domain.DiscountType(r.DiscountType),
		DiscountValue:     r.DiscountValue,
		MaxDiscountAmount: r.MaxDiscountAmount,
		MinPurchaseAmount: r.MinPurchaseAmount,
		MaxUses:           r.MaxUses,
		UsedCount:         r.UsedCount,
		ValidFrom:         r.ValidFrom,
		ValidUntil:        r.ValidUntil,
		IsActive:          r.IsActive,
		CreatedBy:         r.CreatedBy,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

// CouponFields are the coupon attributes an admin may change.
var CouponFields = []string{
	"description", "discountType", "discountValue", "maxDiscountAmount",
	"minPurchaseAmount", "maxUses", "validFrom", "validUntil", "isActive",
}

type CouponRepository struct {
	st store.Store
}

func NewCouponRepository(st store.Store) *CouponRepository {
	return &CouponRepository{st: st}
}

func (r *CouponRepository) Create(ctx context.Context, c *domain.Coupon) error {
	item, err := marshal(toCouponRecord(c))
	if err != nil {
		return err
	}
	err = r.st.Put(ctx, store.Put{Item: item, Cond: store.IfNotExists})
	if isConditionFailed(err) {
		return domain.ErrCouponExists
	}
	if err != nil {
		return fmt.Errorf("create coupon: %w", err)
	}
	return nil
}

func (r *CouponRepository) Get(ctx context.Context, code string) (*domain.Coupon, error) {
	rec, err := getRecord[couponRecord](ctx, r.st, couponKey(code), domain.ErrCouponNotFound)
	if err != nil {
		return nil, err
	}
	return toDomainCoupon(rec), nil
}

func (r *CouponRepository) Update(ctx context.Context, code string, changes map[string]any, now time.Time) (*domain.Coupon, error) {
	set, err := allowed[couponRecord](changes, CouponFields...)
	if err != nil {
		return nil, err
	}
	set["updatedAt"] = now
	item, err := r.st.Update(ctx, store.Update{Key: couponKey(code), Set: set, Cond: store.IfExists})
	if isConditionFailed(err) {
		return nil, domain.ErrCouponNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update coupon %s: %w", code, err)
	}
	rec, err := decode[couponRecord](item)
	if err != nil {
		return nil, err
	}
	return toDomainCoupon(rec), nil
}

// List returns coupons newest first.
func (r *CouponRepository) List(ctx context.Context) ([]*domain.Coupon, error) {
	recs, err := queryRecords[couponRecord](ctx, r.st, store.Query{
		Index: store.GSI3, PK: keys.EntityGSI3PK(keys.TypeCoupon), Descending: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	out := make([]*domain.Coupon, 0, len(recs))
	for i := range recs {
		out = append(out, toDomainCoupon(&recs[i]))
	}
	return out, nil
}

// RedeemOp counts one use of an active coupon that still has uses left.
func (r *CouponRepository) RedeemOp(code string, now time.Time) store.WriteOp {
	return store.WriteOp{Update: &store.Update{
		Key:  couponKey(code),
		Add:  map[string]int{"usedCount": 1},
		Set:  map[string]any{"updatedAt": now},
		Cond: store.IfExists,
		Guards: []store.Guard{
			{Attr: "usedCount", Cmp: store.LessThan, OtherAttr: "maxUses"},
			{Attr: "isActive", Cmp: store.Equal, Value: true},
		},
	}}
}

func couponKey(code string) store.Key {
	return store.Key{PK: keys.CouponPK(code), SK: keys.Metadata}
}
