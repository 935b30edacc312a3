package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"learnplatform/internal/domain"
	"learnplatform/internal/infrastructure/store"
	"learnplatform/internal/keys"
)

type paymentRecord struct {
	PK             string    `dynamodbav:"PK"`
	SK             string    `dynamodbav:"SK"`
	GSI1PK         string    `dynamodbav:"GSI1PK"`
	GSI1SK         string    `dynamodbav:"GSI1SK"`
	EntityType     string    `dynamodbav:"EntityType"`
	PaymentID      string    `dynamodbav:"paymentId"`
	UserID         string    `dynamodbav:"userId"`
	CourseID       string    `dynamodbav:"courseId"`
	CourseTitle    string    `dynamodbav:"courseTitle"`
	Amount         float64   `dynamodbav:"amount"`
	DiscountAmount float64   `dynamodbav:"discountAmount"`
	FinalAmount    float64   `dynamodbav:"finalAmount"`
	Currency       string    `dynamodbav:"currency"`
	CouponCode     string    `dynamodbav:"couponCode,omitempty"`
	PaymentMethod  string    `dynamodbav:"paymentMethod"`
	TransactionID  string    `dynamodbav:"transactionId"`
	Status         string    `dynamodbav:"status"`
	CreatedAt      time.Time `dynamodbav:"createdAt"`
}

func toDomainPayment(r *paymentRecord) *domain.Payment {
	return &domain.Payment{
		ID:             r.PaymentID,
		UserID:         r.UserID,
		CourseID:       r.CourseID,
		CourseTitle:    r.CourseTitle,
		Amount:         r.Amount,
		DiscountAmount: r.DiscountAmount,
		FinalAmount:    r.FinalAmount,
		Currency:       r.Currency,
		CouponCode:     r.CouponCode,
		PaymentMethod:  r.PaymentMethod,
		TransactionID:  r.TransactionID,
		Status:         domain.PaymentStatus(r.Status),
		CreatedAt:      r.CreatedAt,
	}
}

type PaymentRepository struct {
	st store.Store
}

func NewPaymentRepository(st store.Store) *PaymentRepository {
	return &PaymentRepository{st: st}
}

// CreateOp writes an immutable payment record as a transaction member.
func (r *PaymentRepository) CreateOp(p *domain.Payment) (store.WriteOp, error) {
	item, err := marshal(paymentRecord{
		PK:             keys.UserPK(p.UserID),
		SK:             keys.PaymentSK(p.ID),
		GSI1PK:         keys.CoursePaymentsGSI1PK(p.CourseID),
		GSI1SK:         keys.TimeKey(p.CreatedAt),
		EntityType:     keys.TypePayment,
		PaymentID:      p.ID,
		UserID:         p.UserID,
		CourseID:       p.CourseID,
		CourseTitle:    p.CourseTitle,
		Amount:         p.Amount,
		DiscountAmount: p.DiscountAmount,
		FinalAmount:    p.FinalAmount,
		Currency:       p.Currency,
		CouponCode:     p.CouponCode,
		PaymentMethod:  p.PaymentMethod,
		TransactionID:  p.TransactionID,
		Status:         string(p.Status),
		CreatedAt:      p.CreatedAt,
	})
	if err != nil {
		return store.WriteOp{}, err
	}
	return store.WriteOp{Put: &store.Put{Item: item, Cond: store.IfNotExists}}, nil
}

func (r *PaymentRepository) Get(ctx context.Context, userID, paymentID string) (*domain.Payment, error) {
	rec, err := getRecord[paymentRecord](ctx, r.st,
		store.Key{PK: keys.UserPK(userID), SK: keys.PaymentSK(paymentID)}, domain.ErrPaymentNotFound)
	if err != nil {
		return nil, err
	}
	return toDomainPayment(rec), nil
}

// ListByUser returns the user's payments, newest first.
func (r *PaymentRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Payment, error) {
	payments, err := r.list(ctx, store.Query{PK: keys.UserPK(userID), SKPrefix: keys.PaymentPrefix})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(payments, func(i, j int) bool {
		return payments[i].CreatedAt.After(payments[j].CreatedAt)
	})
	return payments, nil
}

func (r *PaymentRepository) ListByCourse(ctx context.Context, courseID string) ([]*domain.Payment, error) {
	return r.list(ctx, store.Query{Index: store.GSI1, PK: keys.CoursePaymentsGSI1PK(courseID), Descending: true})
}

func (r *PaymentRepository) list(ctx context.Context, q store.Query) ([]*domain.Payment, error) {
	recs, err := queryRecords[paymentRecord](ctx, r.st, q)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	out := make([]*domain.Payment, 0, len(recs))
	for i := range recs {
		out = append(out, toDomainPayment(&recs[i]))
	}
	return out, nil
}
