package repository

import (
	"context"
	"fmt"
	"time"

	"learnplatform/internal/domain"
	"learnplatform/internal/infrastructure/store"
	"learnplatform/internal/keys"
)

// Progress counters are stored flat so they can be incremented atomically.
type enrollmentRecord struct {
	PK                   string     `dynamodbav:"PK"`
	SK                   string     `dynamodbav:"SK"`
	GSI1PK               string     `dynamodbav:"GSI1PK"`
	GSI1SK               string     `dynamodbav:"GSI1SK"`
	EntityType           string     `dynamodbav:"EntityType"`
	UserID               string     `dynamodbav:"userId"`
	CourseID             string     `dynamodbav:"courseId"`
	CourseTitle          string     `dynamodbav:"courseTitle"`
	PaymentID            string     `dynamodbav:"paymentId,omitempty"`
	Status               string     `dynamodbav:"status"`
	CompletedLessons     int        `dynamodbav:"completedLessons"`
	TotalLessons         int        `dynamodbav:"totalLessons"`
	CompletionPercentage int        `dynamodbav:"completionPercentage"`
	EnrolledAt           time.Time  `dynamodbav:"enrolledAt"`
	LastAccessedAt       time.Time  `dynamodbav:"lastAccessedAt"`
	CompletedAt          *time.Time `dynamodbav:"completedAt,omitempty"`
}

func toEnrollmentRecord(e *domain.Enrollment) *enrollmentRecord {
	return &enrollmentRecord{
		PK:                   keys.UserPK(e.UserID),
		SK:                   keys.EnrollmentSK(e.CourseID),
		GSI1PK:               keys.CourseEnrollmentsGSI1PK(e.CourseID),
		GSI1SK:               keys.UserPK(e.UserID),
		EntityType:           keys.TypeEnrollment,
		UserID:               e.UserID,
		CourseID:             e.CourseID,
		CourseTitle:          e.CourseTitle,
		PaymentID:            e.PaymentID,
		Status:               string(e.Status),
		CompletedLessons:     e.Progress.CompletedLessons,
		TotalLessons:         e.Progress.TotalLessons,
		CompletionPercentage: e.Progress.CompletionPercentage,
		EnrolledAt:           e.EnrolledAt,
		LastAccessedAt:       e.LastAccessedAt,
		CompletedAt:          e.CompletedAt,
	}
}

func toDomainEnrollment(r *enrollmentRecord) *domain.Enrollment {
	return &domain.Enrollment{
		UserID:      r.UserID,
		CourseID:    r.CourseID,
		CourseTitle: r.CourseTitle,
		PaymentID:   r.PaymentID,
		Status:      domain.EnrollmentStatus(r.Status),
		Progress: domain.Progress{
			CompletedLessons:     r.CompletedLessons,
			TotalLessons:         r.TotalLessons,
			CompletionPercentage: r.CompletionPercentage,
		},
		EnrolledAt:     r.EnrolledAt,
		LastAccessedAt: r.LastAccessedAt,
		CompletedAt:    r.CompletedAt,
	}
}

type EnrollmentRepository struct {
	st store.Store
}

func NewEnrollmentRepository(st store.Store) *EnrollmentRepository {
	return &EnrollmentRepository{st: st}
}

// CreateOp inserts an enrollment that must not exist yet.
func (r *EnrollmentRepository) CreateOp(e *domain.Enrollment) (store.WriteOp, error) {
	item, err := marshal(toEnrollmentRecord(e))
	if err != nil {
		return store.WriteOp{}, err
	}
	return store.WriteOp{Put: &store.Put{Item: item, Cond: store.IfNotExists}}, nil
}

func (r *EnrollmentRepository) Get(ctx context.Context, userID, courseID string) (*domain.Enrollment, error) {
	rec, err := getRecord[enrollmentRecord](ctx, r.st, enrollmentKey(userID, courseID), domain.ErrEnrollmentAbsent)
	if err != nil {
		return nil, err
	}
	return toDomainEnrollment(rec), nil
}

func (r *EnrollmentRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Enrollment, error) {
	return r.list(ctx, store.Query{PK: keys.UserPK(userID), SKPrefix: keys.EnrollmentPrefix})
}

func (r *EnrollmentRepository) ListByCourse(ctx context.Context, courseID string) ([]*domain.Enrollment, error) {
	return r.list(ctx, store.Query{Index: store.GSI1, PK: keys.CourseEnrollmentsGSI1PK(courseID)})
}

func (r *EnrollmentRepository) list(ctx context.Context, q store.Query) ([]*domain.Enrollment, error) {
	recs, err := queryRecords[enrollmentRecord](ctx, r.st, q)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	out := make([]*domain.Enrollment, 0, len(recs))
	for i := range recs {
		out = append(out, toDomainEnrollment(&recs[i]))
	}
	return out, nil
}

// IncrementCompleted counts one more finished lesson. The increment only
// applies while completedLessons < totalLessons; otherwise ErrCounterCapped.
func (r *EnrollmentRepository) IncrementCompleted(ctx context.Context, userID, courseID string, totalLessons int, now time.Time) (*domain.Enrollment, error) {
	item, err := r.st.Update(ctx, store.Update{
		Key:    enrollmentKey(userID, courseID),
		Add:    map[string]int{"completedLessons": 1},
		Set:    map[string]any{"totalLessons": totalLessons, "lastAccessedAt": now},
		Cond:   store.IfExists,
		Guards: []store.Guard{{Attr: "completedLessons", Cmp: store.LessThan, Value: totalLessons}},
	})
	if isConditionFailed(err) {
		return nil, ErrCounterCapped
	}
	if err != nil {
		return nil, fmt.Errorf("increment progress: %w", err)
	}
	rec, err := decode[enrollmentRecord](item)
	if err != nil {
		return nil, err
	}
	return toDomainEnrollment(rec), nil
}

// SetCompletion stores the derived percentage and, at 100%, the completion.
func (r *EnrollmentRepository) SetCompletion(ctx context.Context, e *domain.Enrollment, now time.Time) error {
	set := map[string]any{
		"completionPercentage": e.Progress.CompletionPercentage,
		"status":               string(e.Status),
		"lastAccessedAt":       now,
	}
	if e.CompletedAt != nil {
		set["completedAt"] = *e.CompletedAt
	}
	_, err := r.st.Update(ctx, store.Update{Key: enrollmentKey(e.UserID, e.CourseID), Set: set, Cond: store.IfExists})
	if isConditionFailed(err) {
		return domain.ErrEnrollmentAbsent
	}
	return err
}

func (r *EnrollmentRepository) Touch(ctx context.Context, userID, courseID string, now time.Time) error {
	_, err := r.st.Update(ctx, store.Update{
		Key:  enrollmentKey(userID, courseID),
		Set:  map[string]any{"lastAccessedAt": now},
		Cond: store.IfExists,
	})
	if isConditionFailed(err) {
		return domain.ErrEnrollmentAbsent
	}
	return err
}

func enrollmentKey(userID, courseID string) store.Key {
	return store.Key{PK: keys.UserPK(userID), SK: keys.EnrollmentSK(courseID)}
}
