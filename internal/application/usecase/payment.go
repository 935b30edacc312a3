package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"learnplatform/internal/domain"
	"learnplatform/internal/infrastructure/repository"
	"learnplatform/internal/infrastructure/store"
)

const defaultPaymentMethod = "card"

type ConfirmInput struct {
	CourseID      string
	CouponCode    string
	PaymentMethod string
}

type Purchase struct {
	Payment    *domain.Payment    `json:"payment"`
	Enrollment *domain.Enrollment `json:"enrollment"`
}

// PaymentUseCase prices courses and settles purchases. Settlement is mocked:
// confirming records a completed payment without contacting a processor.
type PaymentUseCase struct {
	courses     *repository.CourseRepository
	coupons     *repository.CouponRepository
	payments    *repository.PaymentRepository
	enrollments *repository.EnrollmentRepository
	tx          store.Transactor
	cache       CatalogCache
	log         *zap.Logger
	now         func() time.Time
}

func NewPaymentUseCase(
	courses *repository.CourseRepository,
	coupons *repository.CouponRepository,
	payments *repository.PaymentRepository,
	enrollments *repository.EnrollmentRepository,
	tx store.Transactor,
	cache CatalogCache,
	log *zap.Logger,
	now func() time.Time,
) *PaymentUseCase {
	if cache == nil {
		cache = noCache{}
	}
	return &PaymentUseCase{
		courses:     courses,
		coupons:     coupons,
		payments:    payments,
		enrollments: enrollments,
		tx:          tx,
		cache:       cache,
		log:         log,
		now:         now,
	}
}

// Checkout quotes the price the user would pay for the course.
func (uc *PaymentUseCase) Checkout(ctx context.Context, userID, courseID, couponCode string) (*domain.Quote, error) {
	_, quote, err := uc.quote(ctx, userID, courseID, couponCode)
	return quote, err
}

func (uc *PaymentUseCase) quote(ctx context.Context, userID, courseID, couponCode string) (*domain.Course, *domain.Quote, error) {
	course, err := uc.courses.Get(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}
	if course.Status != domain.CoursePublished {
		return nil, nil, domain.ErrCourseNotActive
	}
	if _, err := uc.enrollments.Get(ctx, userID, courseID); err == nil {
		return nil, nil, domain.ErrAlreadyEnrolled
	} else if !errors.Is(err, domain.ErrEnrollmentAbsent) {
		return nil, nil, err
	}

	var coupon *domain.Coupon
	if couponCode != "" {
		coupon, err = uc.coupons.Get(ctx, couponCode)
		if err != nil {
			return nil, nil, err
		}
		if !coupon.Check(course.Price, uc.now()).Valid() {
			return nil, nil, domain.ErrCouponInvalid
		}
	}
	q := domain.PriceWith(course.Price, coupon)
	q.CourseID = course.ID
	return course, &q, nil
}

// Confirm records the payment, redeems the coupon, enrolls the user and counts
// the student in one transaction: either all of it happens or none.
func (uc *PaymentUseCase) Confirm(ctx context.Context, userID string, in ConfirmInput) (*Purchase, error) {
	course, quote, err := uc.quote(ctx, userID, in.CourseID, in.CouponCode)
	if err != nil {
		return nil, err
	}
	method := in.PaymentMethod
	if method == "" {
		method = defaultPaymentMethod
	}

	now := uc.now()
	payment := &domain.Payment{
		ID:             uuid.NewString(),
		UserID:         userID,
		CourseID:       course.ID,
		CourseTitle:    course.Title,
		Amount:         quote.Price,
		DiscountAmount: quote.DiscountAmount,
		FinalAmount:    quote.FinalPrice,
		Currency:       quote.Currency,
		CouponCode:     quote.CouponCode,
		PaymentMethod:  method,
		TransactionID:  "txn_" + uuid.NewString(),
		Status:         domain.PaymentCompleted,
		CreatedAt:      now,
	}
	enrollment := newEnrollment(userID, course, payment.ID, now)

	payOp, err := uc.payments.CreateOp(payment)
	if err != nil {
		return nil, err
	}
	enrollOp, err := uc.enrollments.CreateOp(enrollment)
	if err != nil {
		return nil, err
	}

	ops := []store.WriteOp{payOp}
	couponIdx := -1
	if quote.CouponCode != "" {
		couponIdx = len(ops)
		ops = append(ops, uc.coupons.RedeemOp(quote.CouponCode, now))
	}
	enrollIdx := len(ops)
	ops = append(ops, enrollOp, uc.courses.IncrementOp(course.ID, repository.CounterStudents, 1))

	err = uc.tx.Transact(ctx, ops...)
	if failed := store.FailedOp(err); failed >= 0 {
		switch failed {
		case 0:
			return nil, domain.Conflict("Payment already recorded")
		case couponIdx:
			return nil, domain.ErrCouponExhausted
		case enrollIdx:
			return nil, domain.ErrAlreadyEnrolled
		default:
			return nil, domain.ErrCourseNotFound
		}
	}
	if err != nil {
		return nil, fmt.Errorf("confirm payment: %w", err)
	}

	uc.cache.Invalidate(ctx, course.ID)
	uc.log.Info("payment confirmed",
		zap.String("paymentId", payment.ID),
		zap.String("userId", userID),
		zap.String("courseId", course.ID),
		zap.Float64("amount", payment.FinalAmount))
	return &Purchase{Payment: payment, Enrollment: enrollment}, nil
}

func (uc *PaymentUseCase) ListMine(ctx context.Context, userID string) ([]*domain.Payment, error) {
	return uc.payments.ListByUser(ctx, userID)
}

func (uc *PaymentUseCase) Get(ctx context.Context, userID, paymentID string) (*domain.Payment, error) {
	return uc.payments.Get(ctx, userID, paymentID)
}
