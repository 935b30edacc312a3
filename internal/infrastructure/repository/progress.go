package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"learnplatform/internal/domain"
	"learnplatform/internal/infrastructure/store"
	"learnplatform/internal/keys"
)

type lessonProgressRecord struct {
	PK           string     `dynamodbav:"PK"`
	SK           string     `dynamodbav:"SK"`
	EntityType   string     `dynamodbav:"EntityType"`
	UserID       string     `dynamodbav:"userId"`
	CourseID     string     `dynamodbav:"courseId"`
	LessonID     string     `dynamodbav:"lessonId"`
	Status       string     `dynamodbav:"status"`
	LastPosition int        `dynamodbav:"lastPosition"`
	StartedAt    time.Time  `dynamodbav:"startedAt"`
	CompletedAt  *time.Time `dynamodbav:"completedAt,omitempty"`
	UpdatedAt    time.Time  `dynamodbav:"updatedAt"`
}

type ProgressRepository struct {
	st store.Store
}

func NewProgressRepository(st store.Store) *ProgressRepository {
	return &ProgressRepository{st: st}
}

// Get returns nil when the lesson was never opened.
func (r *ProgressRepository) Get(ctx context.Context, userID, courseID, lessonID string) (*domain.LessonProgress, error) {
	rec, err := getRecord[lessonProgressRecord](ctx, r.st,
		store.Key{PK: keys.UserPK(userID), SK: keys.ProgressSK(courseID, lessonID)}, store.ErrNotFound)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toDomainProgress(rec), nil
}

// ErrProgressChanged reports that the stored progress moved on since it was
// read.
var ErrProgressChanged = errors.New("lesson progress changed concurrently")

// Save writes p provided the stored progress still matches prev: absent when
// prev is nil, otherwise in prev's status. A completed lesson is therefore
// completed by exactly one writer.
func (r *ProgressRepository) Save(ctx context.Context, p, prev *domain.LessonProgress) error {
	key := store.Key{PK: keys.UserPK(p.UserID), SK: keys.ProgressSK(p.CourseID, p.LessonID)}
	if prev == nil {
		item, err := marshal(lessonProgressRecord{
			PK:           key.PK,
			SK:           key.SK,
			EntityType:   keys.TypeLessonProgress,
			UserID:       p.UserID,
			CourseID:     p.CourseID,
			LessonID:     p.LessonID,
			Status:       string(p.Status),
			LastPosition: p.LastPosition,
			StartedAt:    p.StartedAt,
			CompletedAt:  p.CompletedAt,
			UpdatedAt:    p.UpdatedAt,
		})
		if err != nil {
			return err
		}
		err = r.st.Put(ctx, store.Put{Item: item, Cond: store.IfNotExists})
		if isConditionFailed(err) {
			return ErrProgressChanged
		}
		if err != nil {
			return fmt.Errorf("save lesson progress: %w", err)
		}
		return nil
	}

	u := store.Update{
		Key: key,
		Set: map[string]any{
			"status":       string(p.Status),
			"lastPosition": p.LastPosition,
			"updatedAt":    p.UpdatedAt,
		},
		Cond:   store.IfExists,
		Guards: []store.Guard{{Attr: "status", Cmp: store.Equal, Value: string(prev.Status)}},
	}
	if p.CompletedAt != nil {
		u.Set["completedAt"] = *p.CompletedAt
	}
	_, err := r.st.Update(ctx, u)
	if isConditionFailed(err) {
		return ErrProgressChanged
	}
	if err != nil {
		return fmt.Errorf("save lesson progress: %w", err)
	}
	return nil
}

func (r *ProgressRepository) ListByCourse(ctx context.Context, userID, courseID string) ([]*domain.LessonProgress, error) {
	recs, err := queryRecords[lessonProgressRecord](ctx, r.st, store.Query{
		PK: keys.UserPK(userID), SKPrefix: keys.ProgressCoursePrefix(courseID),
	})
	if err != nil {
		return nil, fmt.Errorf("list lesson progress: %w", err)
	}
	out := make([]*domain.LessonProgress, 0, len(recs))
	for i := range recs {
		out = append(out, toDomainProgress(&recs[i]))
	}
	return out, nil
}

func toDomainProgress(r *lessonProgressRecord) *domain.LessonProgress {
	return &domain.LessonProgress{
		UserID:       r.UserID,
		CourseID:     r.CourseID,
		LessonID:     r.LessonID,
		Status:       domain.LessonStatus(r.Status),
		LastPosition: r.LastPosition,
		StartedAt:    r.StartedAt,
		CompletedAt:  r.CompletedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
