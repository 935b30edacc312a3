package repository

import (
	"context"
	"fmt"
	"time"

	"learnplatform/internal/domain"
	"learnplatform/internal/infrastructure/store"
	"learnplatform/internal/keys"
)

type schoolRecord struct {
	PK          string    `dynamodbav:"PK"`
	SK          string    `dynamodbav:"SK"`
	GSI1PK      string    `dynamodbav:"GSI1PK"`
	GSI1SK      string    `dynamodbav:"GSI1SK"`
	GSI3PK      string    `dynamodbav:"GSI3PK"`
	GSI3SK      string    `dynamodbav:"GSI3SK"`
	EntityType  string    `dynamodbav:"EntityType"`
	SchoolID    string    `dynamodbav:"schoolId"`
	Name        string    `dynamodbav:"name"`
	Description string    `dynamodbav:"description,omitempty"`
	LogoURL     string    `dynamodbav:"logoUrl,omitempty"`
	Website     string    `dynamodbav:"website,omitempty"`
	AdminUserID string    `dynamodbav:"adminUserId"`
	CreatedAt   time.Time `dynamodbav:"createdAt"`
	UpdatedAt   time.Time `dynamodbav:"updatedAt"`
}

type instructorRecord struct {
	PK         string    `dynamodbav:"PK"`
	SK         string    `dynamodbav:"SK"`
	GSI1PK     string    `dynamodbav:"GSI1PK"`
	GSI1SK     string    `dynamodbav:"GSI1SK"`
	EntityType string    `dynamodbav:"EntityType"`
	SchoolID   string    `dynamodbav:"schoolId"`
	UserID     string    `dynamodbav:"userId"`
	AddedBy    string    `dynamodbav:"addedBy"`
	AddedAt    time.Time `dynamodbav:"addedAt"`
}

func toDomainSchool(r *schoolRecord) *domain.School {
	return &domain.School{
		ID:          r.SchoolID,
		Name:        r.Name,
		Description: r.Description,
		LogoURL:     r.LogoURL,
		Website:     r.Website,
		AdminUserID: r.AdminUserID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func toDomainInstructor(r *instructorRecord) *domain.SchoolInstructor {
	return &domain.SchoolInstructor{
		SchoolID: r.SchoolID,
		UserID:   r.UserID,
		AddedBy:  r.AddedBy,
		AddedAt:  r.AddedAt,
	}
}

// SchoolFields are the school attributes its admins may change.
var SchoolFields = []string{"name", "description", "logoUrl", "website"}

type SchoolRepository struct {
	st store.Store
}

func NewSchoolRepository(st store.Store) *SchoolRepository {
	return &SchoolRepository{st: st}
}

func (r *SchoolRepository) CreateOp(s *domain.School) (store.WriteOp, error) {
	item, err := marshal(schoolRecord{
		PK:          keys.SchoolPK(s.ID),
		SK:          keys.Metadata,
		GSI1PK:      keys.SchoolAdminGSI1PK(s.AdminUserID),
		GSI1SK:      keys.SchoolPK(s.ID),
		GSI3PK:      keys.EntityGSI3PK(keys.TypeSchool),
		GSI3SK:      keys.TimeKey(s.CreatedAt),
		EntityType:  keys.TypeSchool,
		SchoolID:    s.ID,
		Name:        s.Name,
		Description: s.Description,
		LogoURL:     s.LogoURL,
		Website:     s.Website,
		AdminUserID: s.AdminUserID,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	})
	if err != nil {
		return store.WriteOp{}, err
	}
	return store.WriteOp{Put: &store.Put{Item: item, Cond: store.IfNotExists}}, nil
}

func (r *SchoolRepository) Get(ctx context.Context, id string) (*domain.School, error) {
	rec, err := getRecord[schoolRecord](ctx, r.st, schoolKey(id), domain.ErrSchoolNotFound)
	if err != nil {
		return nil, err
	}
	return toDomainSchool(rec), nil
}

// FindByAdmin returns the school administered by userID, or nil.
func (r *SchoolRepository) FindByAdmin(ctx context.Context, userID string) (*domain.School, error) {
	recs, err := queryRecords[schoolRecord](ctx, r.st, store.Query{Index: store.GSI1, PK: keys.SchoolAdminGSI1PK(userID), Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("find school by admin: %w", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return toDomainSchool(&recs[0]), nil
}

// List returns schools newest first.
func (r *SchoolRepository) List(ctx context.Context) ([]*domain.School, error) {
	recs, err := queryRecords[schoolRecord](ctx, r.st, store.Query{
		Index: store.GSI3, PK: keys.EntityGSI3PK(keys.TypeSchool), Descending: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	out := make([]*domain.School, 0, len(recs))
	for i := range recs {
		out = append(out, toDomainSchool(&recs[i]))
	}
	return out, nil
}

func (r *SchoolRepository) Update(ctx context.Context, id string, changes map[string]any, now time.Time) (*domain.School, error) {
	set, err := allowed[schoolRecord](changes, SchoolFields...)
	if err != nil {
		return nil, err
	}
	set["updatedAt"] = now
	item, err := r.st.Update(ctx, store.Update{Key: schoolKey(id), Set: set, Cond: store.IfExists})
	if isConditionFailed(err) {
		return nil, domain.ErrSchoolNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update school %s: %w", id, err)
	}
	rec, err := decode[schoolRecord](item)
	if err != nil {
		return nil, err
	}
	return toDomainSchool(rec), nil
}

// Delete removes the whole school partition, instructors included.
func (r *SchoolRepository) Delete(ctx context.Context, id string) error {
	items, err := r.st.Query(ctx, store.Query{PK: keys.SchoolPK(id)})
	if err != nil {
		return fmt.Errorf("list school partition: %w", err)
	}
	if len(items) == 0 {
		return domain.ErrSchoolNotFound
	}
	targets := make([]store.Key, 0, len(items))
	for _, item := range items {
		targets = append(targets, store.KeyOf(item))
	}
	return deleteAll(ctx, r.st, targets)
}

func (r *SchoolRepository) AddInstructor(ctx context.Context, in *domain.SchoolInstructor) error {
	item, err := marshal(instructorRecord{
		PK:         keys.SchoolPK(in.SchoolID),
		SK:         keys.InstructorSK(in.UserID),
		GSI1PK:     keys.InstructorGSI1PK(in.UserID),
		GSI1SK:     keys.SchoolPK(in.SchoolID),
		EntityType: keys.TypeSchoolInstructor,
		SchoolID:   in.SchoolID,
		UserID:     in.UserID,
		AddedBy:    in.AddedBy,
		AddedAt:    in.AddedAt,
	})
	if err != nil {
		return err
	}
	err = r.st.Put(ctx, store.Put{Item: item, Cond: store.IfNotExists})
	if isConditionFailed(err) {
		return domain.ErrInstructorExists
	}
	return err
}

func (r *SchoolRepository) RemoveInstructor(ctx context.Context, schoolID, userID string) error {
	err := r.st.Delete(ctx, store.Delete{
		Key:  store.Key{PK: keys.SchoolPK(schoolID), SK: keys.InstructorSK(userID)},
		Cond: store.IfExists,
	})
	if isConditionFailed(err) {
		return domain.ErrInstructorNotFound
	}
	return err
}

func (r *SchoolRepository) ListInstructors(ctx context.Context, schoolID string) ([]*domain.SchoolInstructor, error) {
	return r.instructors(ctx, store.Query{PK: keys.SchoolPK(schoolID), SKPrefix: keys.InstructorPrefix})
}

// ListSchoolsOfInstructor returns the memberships of one user.
func (r *SchoolRepository) ListSchoolsOfInstructor(ctx context.Context, userID string) ([]*domain.SchoolInstructor, error) {
	return r.instructors(ctx, store.Query{Index: store.GSI1, PK: keys.InstructorGSI1PK(userID)})
}

func (r *SchoolRepository) instructors(ctx context.Context, q store.Query) ([]*domain.SchoolInstructor, error) {
	recs, err := queryRecords[instructorRecord](ctx, r.st, q)
	if err != nil {
		return nil, fmt.Errorf("list instructors: %w", err)
	}
	out := make([]*domain.SchoolInstructor, 0, len(recs))
	for i := range recs {
		out = append(out, toDomainInstructor(&recs[i]))
	}
	return out, nil
}

func schoolKey(id string) store.Key {
	return store.Key{PK: keys.SchoolPK(id), SK: keys.Metadata}
}
