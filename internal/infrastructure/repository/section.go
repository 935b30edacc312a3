package repository

import (
	"context"
	"fmt"
	"time"

	"learnplatform/internal/domain"
	"learnplatform/internal/infrastructure/store"
	"learnplatform/internal/keys"
)

type sectionRecord struct {
	PK          string    `dynamodbav:"PK"`
	SK          string    `dynamodbav:"SK"`
	EntityType  string    `dynamodbav:"EntityType"`
	SectionID   string    `dynamodbav:"sectionId"`
	CourseID    string    `dynamodbav:"courseId"`
	Title       string    `dynamodbav:"title"`
	Description string    `dynamodbav:"description,omitempty"`
	Order       int       `dynamodbav:"order"`
	CreatedAt   time.Time `dynamodbav:"createdAt"`
	UpdatedAt   time.Time `dynamodbav:"updatedAt"`
}

func toSectionRecord(s *domain.Section) *sectionRecord {
	return &sectionRecord{
		PK:          keys.CoursePK(s.CourseID),
		SK:          keys.SectionSK(s.Order),
		EntityType:  keys.TypeSection,
		SectionID:   s.ID,
		CourseID:    s.CourseID,
		Title:       s.Title,
		Description: s.Description,
		Order:       s.Order,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func toDomainSection(r *sectionRecord) *domain.Section {
	return &domain.Section{
		ID:          r.SectionID,
		CourseID:    r.CourseID,
		Title:       r.Title,
		Description: r.Description,
		Order:       r.Order,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// SectionRepository stores sections under their course, sorted by order. The
// order is part of the sort key, so moving a section rewrites its record.
type SectionRepository struct {
	st store.Store
}

func NewSectionRepository(st store.Store) *SectionRepository {
	return &SectionRepository{st: st}
}

// Create fails with a conflict when the order slot is already taken.
func (r *SectionRepository) Create(ctx context.Context, s *domain.Section) error {
	op, err := r.PutOp(s, store.IfNotExists)
	if err != nil {
		return err
	}
	err = r.st.Put(ctx, *op.Put)
	if isConditionFailed(err) {
		return domain.Conflict("Section position %d is already taken", s.Order)
	}
	if err != nil {
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}

// Replace overwrites the section stored at its current order.
func (r *SectionRepository) Replace(ctx context.Context, s *domain.Section) error {
	op, err := r.PutOp(s, store.IfExists)
	if err != nil {
		return err
	}
	err = r.st.Put(ctx, *op.Put)
	if isConditionFailed(err) {
		return domain.ErrSectionNotFound
	}
	return err
}

func (r *SectionRepository) PutOp(s *domain.Section, cond store.Condition) (store.WriteOp, error) {
	item, err := marshal(toSectionRecord(s))
	if err != nil {
		return store.WriteOp{}, err
	}
	return store.WriteOp{Put: &store.Put{Item: item, Cond: cond}}, nil
}

func (r *SectionRepository) DeleteOp(courseID string, order int) store.WriteOp {
	return store.WriteOp{Delete: &store.Delete{Key: sectionKey(courseID, order)}}
}

func (r *SectionRepository) Delete(ctx context.Context, courseID string, order int) error {
	op := r.DeleteOp(courseID, order)
	return r.st.Delete(ctx, *op.Delete)
}

// List returns the course's sections in display order.
func (r *SectionRepository) List(ctx context.Context, courseID string) ([]*domain.Section, error) {
	recs, err := queryRecords[sectionRecord](ctx, r.st, store.Query{PK: keys.CoursePK(courseID), SKPrefix: keys.SectionPrefix})
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	sections := make([]*domain.Section, 0, len(recs))
	for i := range recs {
		sections = append(sections, toDomainSection(&recs[i]))
	}
	return sections, nil
}

// Last returns the section with the highest order, or nil.
func (r *SectionRepository) Last(ctx context.Context, courseID string) (*domain.Section, error) {
	recs, err := queryRecords[sectionRecord](ctx, r.st, store.Query{
		PK: keys.CoursePK(courseID), SKPrefix: keys.SectionPrefix, Descending: true, Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("last section: %w", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return toDomainSection(&recs[0]), nil
}

func (r *SectionRepository) Find(ctx context.Context, courseID, sectionID string) (*domain.Section, error) {
	sections, err := r.List(ctx, courseID)
	if err != nil {
		return nil, err
	}
	for _, s := range sections {
		if s.ID == sectionID {
			return s, nil
		}
	}
	return nil, domain.ErrSectionNotFound
}

func sectionKey(courseID string, order int) store.Key {
	return store.Key{PK: keys.CoursePK(courseID), SK: keys.SectionSK(order)}
}
