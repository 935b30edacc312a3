package repository

import (
	"context"
	"fmt"
	"time"

	"learnplatform/internal/domain"
	"learnplatform/internal/infrastructure/store"
	"learnplatform/internal/keys"
)

type lessonRecord struct {
	PK          string    `dynamodbav:"PK"`
	SK          string    `dynamodbav:"SK"`
	GSI1PK      string    `dynamodbav:"GSI1PK"`
	GSI1SK      string    `dynamodbav:"GSI1SK"`
	EntityType  string    `dynamodbav:"EntityType"`
	LessonID    string    `dynamodbav:"lessonId"`
	CourseID    string    `dynamodbav:"courseId"`
	SectionID   string    `dynamodbav:"sectionId"`
	Title       string    `dynamodbav:"title"`
	Description string    `dynamodbav:"description,omitempty"`
	VideoURL    string    `dynamodbav:"videoUrl,omitempty"`
	Duration    int       `dynamodbav:"duration"`
	Order       int       `dynamodbav:"order"`
	IsPreview   bool      `dynamodbav:"isPreview"`
	CreatedAt   time.Time `dynamodbav:"createdAt"`
	UpdatedAt   time.Time `dynamodbav:"updatedAt"`
}

func toLessonRecord(l *domain.Lesson) *lessonRecord {
	return &lessonRecord{
		PK:          keys.CoursePK(l.CourseID),
		SK:          keys.LessonSK(l.ID),
		GSI1PK:      keys.LessonGSI1PK(l.CourseID, l.SectionID),
		GSI1SK:      keys.LessonGSI1SK(l.Order),
		EntityType:  keys.TypeLesson,
		LessonID:    l.ID,
		CourseID:    l.CourseID,
		SectionID:   l.SectionID,
		Title:       l.Title,
		Description: l.Description,
		VideoURL:    l.VideoURL,
		Duration:    l.Duration,
		Order:       l.Order,
		IsPreview:   l.IsPreview,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func toDomainLesson(r *lessonRecord) *domain.Lesson {
	return &domain.Lesson{
		ID:          r.LessonID,
		CourseID:    r.CourseID,
		SectionID:   r.SectionID,
		Title:       r.Title,
		Description: r.Description,
		VideoURL:    r.VideoURL,
		Duration:    r.Duration,
		Order:       r.Order,
		IsPreview:   r.IsPreview,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// LessonFields are the lesson attributes an admin may change directly.
var LessonFields = []string{"title", "description", "videoUrl", "duration", "isPreview"}

type LessonRepository struct {
	st store.Store
}

func NewLessonRepository(st store.Store) *LessonRepository {
	return &LessonRepository{st: st}
}

// CreateOp is the lesson insert as a transaction member.
func (r *LessonRepository) CreateOp(l *domain.Lesson) (store.WriteOp, error) {
	item, err := marshal(toLessonRecord(l))
	if err != nil {
		return store.WriteOp{}, err
	}
	return store.WriteOp{Put: &store.Put{Item: item, Cond: store.IfNotExists}}, nil
}

func (r *LessonRepository) Get(ctx context.Context, courseID, lessonID string) (*domain.Lesson, error) {
	rec, err := getRecord[lessonRecord](ctx, r.st, lessonKey(courseID, lessonID), domain.ErrLessonNotFound)
	if err != nil {
		return nil, err
	}
	return toDomainLesson(rec), nil
}

func (r *LessonRepository) Update(ctx context.Context, courseID, lessonID string, changes map[string]any, now time.Time) (*domain.Lesson, error) {
	set, err := allowed[lessonRecord](changes, LessonFields...)
	if err != nil {
		return nil, err
	}
	set["updatedAt"] = now
	return r.update(ctx, courseID, lessonID, set)
}

// SetOrder moves a lesson within its section.
func (r *LessonRepository) SetOrder(ctx context.Context, courseID, lessonID string, order int, now time.Time) (*domain.Lesson, error) {
	return r.update(ctx, courseID, lessonID, map[string]any{
		"order":     order,
		"GSI1SK":    keys.LessonGSI1SK(order),
		"updatedAt": now,
	})
}

func (r *LessonRepository) update(ctx context.Context, courseID, lessonID string, set map[string]any) (*domain.Lesson, error) {
	item, err := r.st.Update(ctx, store.Update{Key: lessonKey(courseID, lessonID), Set: set, Cond: store.IfExists})
	if isConditionFailed(err) {
		return nil, domain.ErrLessonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update lesson %s: %w", lessonID, err)
	}
	rec, err := decode[lessonRecord](item)
	if err != nil {
		return nil, err
	}
	return toDomainLesson(rec), nil
}

// DeleteOp removes a lesson that must exist, as a transaction member.
func (r *LessonRepository) DeleteOp(courseID, lessonID string) store.WriteOp {
	return store.WriteOp{Delete: &store.Delete{Key: lessonKey(courseID, lessonID), Cond: store.IfExists}}
}

// ListBySection returns a section's lessons in display order.
func (r *LessonRepository) ListBySection(ctx context.Context, courseID, sectionID string) ([]*domain.Lesson, error) {
	return r.list(ctx, store.Query{Index: store.GSI1, PK: keys.LessonGSI1PK(courseID, sectionID)})
}

func (r *LessonRepository) ListByCourse(ctx context.Context, courseID string) ([]*domain.Lesson, error) {
	return r.list(ctx, store.Query{PK: keys.CoursePK(courseID), SKPrefix: keys.LessonPrefix})
}

func (r *LessonRepository) list(ctx context.Context, q store.Query) ([]*domain.Lesson, error) {
	recs, err := queryRecords[lessonRecord](ctx, r.st, q)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	lessons := make([]*domain.Lesson, 0, len(recs))
	for i := range recs {
		lessons = append(lessons, toDomainLesson(&recs[i]))
	}
	return lessons, nil
}

func lessonKey(courseID, lessonID string) store.Key {
	return store.Key{PK: keys.CoursePK(courseID), SK: keys.LessonSK(lessonID)}
}
