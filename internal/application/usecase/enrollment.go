package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"learnplatform/internal/domain"
	"learnplatform/internal/infrastructure/repository"
	"learnplatform/internal/infrastructure/store"
)

type ProgressInput struct {
	CourseID     string
	LessonID     string
	Status       domain.LessonStatus
	LastPosition int
}

// CourseProgress is an enrollment with the per-lesson records behind it.
type CourseProgress struct {
	Enrollment *domain.Enrollment       `json:"enrollment"`
	Lessons    []*domain.LessonProgress `json:"lessons"`
}

type EnrollmentUseCase struct {
	courses     *repository.CourseRepository
	lessons     *repository.LessonRepository
	enrollments *repository.EnrollmentRepository
	progress    *repository.ProgressRepository
	tx          store.Transactor
	cache       CatalogCache
	log         *zap.Logger
	now         func() time.Time
}

func NewEnrollmentUseCase(
	courses *repository.CourseRepository,
	lessons *repository.LessonRepository,
	enrollments *repository.EnrollmentRepository,
	progress *repository.ProgressRepository,
	tx store.Transactor,
	cache CatalogCache,
	log *zap.Logger,
	now func() time.Time,
) *EnrollmentUseCase {
	if cache == nil {
		cache = noCache{}
	}
	return &EnrollmentUseCase{
		courses:     courses,
		lessons:     lessons,
		enrollments: enrollments,
		progress:    progress,
		tx:          tx,
		cache:       cache,
		log:         log,
		now:         now,
	}
}

// Enroll signs the user up for a free, published course. Paid courses go
// through checkout instead.
func (uc *EnrollmentUseCase) Enroll(ctx context.Context, userID, courseID string) (*domain.Enrollment, error) {
	course, err := uc.courses.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.Status != domain.CoursePublished {
		return nil, domain.ErrCourseNotActive
	}
	if !course.IsFree() {
		return nil, domain.ErrPaymentRequired
	}

	now := uc.now()
	e := newEnrollment(userID, course, "", now)
	create, err := uc.enrollments.CreateOp(e)
	if err != nil {
		return nil, err
	}
	err = uc.tx.Transact(ctx, create, uc.courses.IncrementOp(courseID, repository.CounterStudents, 1))
	switch store.FailedOp(err) {
	case 0:
		return nil, domain.ErrAlreadyEnrolled
	case 1:
		return nil, domain.ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("enroll: %w", err)
	}
	uc.cache.Invalidate(ctx, courseID)
	uc.log.Info("user enrolled", zap.String("userId", userID), zap.String("courseId", courseID))
	return e, nil
}

func newEnrollment(userID string, course *domain.Course, paymentID string, now time.Time) *domain.Enrollment {
	return &domain.Enrollment{
		UserID:         userID,
		CourseID:       course.ID,
		CourseTitle:    course.Title,
		PaymentID:      paymentID,
		Status:         domain.EnrollmentActive,
		Progress:       domain.Progress{TotalLessons: course.TotalLessons},
		EnrolledAt:     now,
		LastAccessedAt: now,
	}
}

func (uc *EnrollmentUseCase) ListMine(ctx context.Context, userID string) ([]*domain.Enrollment, error) {
	return uc.enrollments.ListByUser(ctx, userID)
}

func (uc *EnrollmentUseCase) Get(ctx context.Context, userID, courseID string) (*domain.Enrollment, error) {
	return uc.enrollments.Get(ctx, userID, courseID)
}

// Students lists the enrollments of a course.
func (uc *EnrollmentUseCase) Students(ctx context.Context, courseID string) ([]*domain.Enrollment, error) {
	if _, err := uc.courses.Get(ctx, courseID); err != nil {
		return nil, err
	}
	return uc.enrollments.ListByCourse(ctx, courseID)
}

// UpdateProgress records the user's state on one lesson. The first time a
// lesson is completed the enrollment's completed count goes up by one, never
// past the course's lesson count. A completed lesson stays completed.
func (uc *EnrollmentUseCase) UpdateProgress(ctx context.Context, userID string, in ProgressInput) (*CourseProgress, error) {
	if !in.Status.Valid() {
		return nil, domain.Validation("Unknown lesson status %s", in.Status)
	}
	enrollment, err := uc.enrollments.Get(ctx, userID, in.CourseID)
	if errors.Is(err, domain.ErrEnrollmentAbsent) {
		return nil, domain.ErrNotEnrolled
	}
	if err != nil {
		return nil, err
	}
	if _, err := uc.lessons.Get(ctx, in.CourseID, in.LessonID); err != nil {
		return nil, err
	}
	course, err := uc.courses.Get(ctx, in.CourseID)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	var firstCompletion bool
	for attempt := 1; ; attempt++ {
		existing, err := uc.progress.Get(ctx, userID, in.CourseID, in.LessonID)
		if err != nil {
			return nil, err
		}
		var lp *domain.LessonProgress
		lp, firstCompletion = nextProgress(existing, userID, in, now)
		err = uc.progress.Save(ctx, lp, existing)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrProgressChanged) {
			return nil, err
		}
		if attempt == progressAttempts {
			return nil, domain.Conflict("Lesson progress changed, try again")
		}
	}

	if firstCompletion {
		enrollment, err = uc.completeLesson(ctx, enrollment, course.TotalLessons, now)
		if err != nil {
			return nil, err
		}
	} else if err := uc.enrollments.Touch(ctx, userID, in.CourseID, now); err != nil {
		return nil, err
	}

	lessons, err := uc.progress.ListByCourse(ctx, userID, in.CourseID)
	if err != nil {
		return nil, err
	}
	return &CourseProgress{Enrollment: enrollment, Lessons: lessons}, nil
}

// progressAttempts bounds the read and save retries of one progress update.
const progressAttempts = 3

// nextProgress derives the lesson's new state from the stored one. It reports
// whether this write is the lesson's first completion.
func nextProgress(existing *domain.LessonProgress, userID string, in ProgressInput, now time.Time) (*domain.LessonProgress, bool) {
	lp := &domain.LessonProgress{
		UserID:       userID,
		CourseID:     in.CourseID,
		LessonID:     in.LessonID,
		Status:       in.Status,
		LastPosition: in.LastPosition,
		StartedAt:    now,
		UpdatedAt:    now,
	}
	alreadyDone := false
	if existing != nil {
		lp.StartedAt = existing.StartedAt
		lp.CompletedAt = existing.CompletedAt
		alreadyDone = existing.Status == domain.LessonCompleted
	}
	if alreadyDone {
		lp.Status = domain.LessonCompleted
	}
	first := in.Status == domain.LessonCompleted && !alreadyDone
	if first {
		lp.CompletedAt = &now
	}
	return lp, first
}

func (uc *EnrollmentUseCase) completeLesson(ctx context.Context, e *domain.Enrollment, totalLessons int, now time.Time) (*domain.Enrollment, error) {
	updated, err := uc.enrollments.IncrementCompleted(ctx, e.UserID, e.CourseID, totalLessons, now)
	if errors.Is(err, repository.ErrCounterCapped) {
		uc.log.Warn("completed lesson count already at course total",
			zap.String("userId", e.UserID), zap.String("courseId", e.CourseID))
		return e, nil
	}
	if err != nil {
		return nil, err
	}

	updated.Progress.CompletionPercentage = updated.Progress.Percentage()
	if updated.Progress.CompletionPercentage == 100 && updated.CompletedAt == nil {
		updated.Status = domain.EnrollmentCompleted
		updated.CompletedAt = &now
	}
	if err := uc.enrollments.SetCompletion(ctx, updated, now); err != nil {
		return nil, err
	}
	updated.LastAccessedAt = now
	return updated, nil
}

func (uc *EnrollmentUseCase) GetProgress(ctx context.Context, userID, courseID string) (*CourseProgress, error) {
	enrollment, err := uc.enrollments.Get(ctx, userID, courseID)
	if errors.Is(err, domain.ErrEnrollmentAbsent) {
		return nil, domain.ErrNotEnrolled
	}
	if err != nil {
		return nil, err
	}
	lessons, err := uc.progress.ListByCourse(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	return &CourseProgress{Enrollment: enrollment, Lessons: lessons}, nil
}
