package repository

import (
	"context"
	"fmt"
	"slices"
	"time"

	"learnplatform/internal/domain"
	"learnplatform/internal/infrastructure/store"
	"learnplatform/internal/keys"
)

type courseRecord struct {
	PK            string    `dynamodbav:"PK"`
	SK            string    `dynamodbav:"SK"`
	GSI1PK        string    `dynamodbav:"GSI1PK"`
	GSI1SK        string    `dynamodbav:"GSI1SK"`
	GSI2PK        string    `dynamodbav:"GSI2PK"`
	GSI2SK        string    `dynamodbav:"GSI2SK"`
	GSI3PK        string    `dynamodbav:"GSI3PK"`
	GSI3SK        string    `dynamodbav:"GSI3SK"`
	EntityType    string    `dynamodbav:"EntityType"`
	CourseID      string    `dynamodbav:"courseId"`
	Title         string    `dynamodbav:"title"`
	Description   string    `dynamodbav:"description"`
	Category      string    `dynamodbav:"category"`
	Level         string    `dynamodbav:"level,omitempty"`
	Language      string    `dynamodbav:"language,omitempty"`
	Price         float64   `dynamodbav:"price"`
	InstructorID  string    `dynamodbav:"instructorId,omitempty"`
	SchoolID      string    `dynamodbav:"schoolId,omitempty"`
	ThumbnailURL  string    `dynamodbav:"thumbnailUrl,omitempty"`
	Tags          []string  `dynamodbav:"tags,omitempty"`
	Status        string    `dynamodbav:"status"`
	TotalStudents int       `dynamodbav:"totalStudents"`
	TotalLessons  int       `dynamodbav:"totalLessons"`
	TotalSections int       `dynamodbav:"totalSections"`
	AverageRating float64   `dynamodbav:"averageRating"`
	CreatedBy     string    `dynamodbav:"createdBy,omitempty"`
	CreatedAt     time.Time `dynamodbav:"createdAt"`
	UpdatedAt     time.Time `dynamodbav:"updatedAt"`
}

func toCourseRecord(c *domain.Course) *courseRecord {
	created := keys.TimeKey(c.CreatedAt)
	return &courseRecord{
		PK:            keys.CoursePK(c.ID),
		SK:            keys.Metadata,
		GSI1PK:        keys.CategoryGSI1PK(c.Category),
		GSI1SK:        keys.CategoryGSI1SK(string(c.Status), c.CreatedAt),
		GSI2PK:        keys.StatusGSI2PK(string(c.Status)),
		GSI2SK:        created,
		GSI3PK:        keys.EntityGSI3PK(keys.TypeCourse),
		GSI3SK:        created,
		EntityType:    keys.TypeCourse,
		CourseID:      c.ID,
		Title:         c.Title,
		Description:   c.Description,
		Category:      c.Category,
		Level:         c.Level,
		Language:      c.Language,
		Price:         c.Price,
		InstructorID:  c.InstructorID,
		SchoolID:      c.SchoolID,
		ThumbnailURL:  c.ThumbnailURL,
		Tags:          c.Tags,
		Status:        string(c.Status),
		TotalStudents: c.TotalStudents,
		TotalLessons:  c.TotalLessons,
		TotalSections: c.TotalSections,
		AverageRating: c.AverageRating,
		CreatedBy:     c.CreatedBy,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func toDomainCourse(r *courseRecord) *domain.Course {
	return &domain.Course{
		ID:            r.CourseID,
		Title:         r.Title,
		Description:   r.Description,
		Category:      r.Category,
		Level:         r.Level,
		Language:      r.Language,
		Price:         r.Price,
		InstructorID:  r.InstructorID,
		SchoolID:      r.SchoolID,
		ThumbnailURL:  r.ThumbnailURL,
		Tags:          r.Tags,
		Status:        domain.CourseStatus(r.Status),
		TotalStudents: r.TotalStudents,
		TotalLessons:  r.TotalLessons,
		TotalSections: r.TotalSections,
		AverageRating: r.AverageRating,
		CreatedBy:     r.CreatedBy,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// CourseFields are the course attributes an admin may change.
var CourseFields = []string{
	"title", "description", "category", "price", "level", "thumbnailUrl",
	"status", "instructorId", "schoolId", "language", "tags",
}

// Course counters maintained with atomic increments.
const (
	CounterStudents = "totalStudents"
	CounterLessons  = "totalLessons"
	CounterSections = "totalSections"
)

// CourseFilter selects the index a listing reads. Category and Status combine
// on the category index.
type CourseFilter struct {
	Category string
	Status   domain.CourseStatus
	Limit    int
}

type CourseRepository struct {
	st store.Store
}

func NewCourseRepository(st store.Store) *CourseRepository {
	return &CourseRepository{st: st}
}

func (r *CourseRepository) Create(ctx context.Context, c *domain.Course) error {
	item, err := marshal(toCourseRecord(c))
	if err != nil {
		return err
	}
	if err := r.st.Put(ctx, store.Put{Item: item, Cond: store.IfNotExists}); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

func (r *CourseRepository) Get(ctx context.Context, id string) (*domain.Course, error) {
	rec, err := getRecord[courseRecord](ctx, r.st, courseKey(id), domain.ErrCourseNotFound)
	if err != nil {
		return nil, err
	}
	return toDomainCourse(rec), nil
}

// Update applies changes restricted to CourseFields and keeps the category
// and status indexes in step.
func (r *CourseRepository) Update(ctx context.Context, id string, changes map[string]any, now time.Time) (*domain.Course, error) {
	set, err := allowed[courseRecord](changes, CourseFields...)
	if err != nil {
		return nil, err
	}
	if category, ok := set["category"].(string); ok {
		set["GSI1PK"] = keys.CategoryGSI1PK(category)
	}
	if status, ok := set["status"].(string); ok {
		current, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		set["GSI1SK"] = keys.CategoryGSI1SK(status, current.CreatedAt)
		set["GSI2PK"] = keys.StatusGSI2PK(status)
	}
	set["updatedAt"] = now
	item, err := r.st.Update(ctx, store.Update{Key: courseKey(id), Set: set, Cond: store.IfExists})
	if isConditionFailed(err) {
		return nil, domain.ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update course %s: %w", id, err)
	}
	rec, err := decode[courseRecord](item)
	if err != nil {
		return nil, err
	}
	return toDomainCourse(rec), nil
}

// IncrementOp adjusts one course counter as a transaction member.
func (r *CourseRepository) IncrementOp(id, counter string, delta int) store.WriteOp {
	return store.WriteOp{Update: &store.Update{
		Key:  courseKey(id),
		Add:  map[string]int{counter: delta},
		Cond: store.IfExists,
	}}
}

func (r *CourseRepository) Increment(ctx context.Context, id, counter string, delta int) (*domain.Course, error) {
	op := r.IncrementOp(id, counter, delta)
	item, err := r.st.Update(ctx, *op.Update)
	if isConditionFailed(err) {
		return nil, domain.ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("increment %s of course %s: %w", counter, id, err)
	}
	rec, err := decode[courseRecord](item)
	if err != nil {
		return nil, err
	}
	return toDomainCourse(rec), nil
}

// List reads the category index, the status index or the all-courses index,
// newest first.
func (r *CourseRepository) List(ctx context.Context, f CourseFilter) ([]*domain.Course, error) {
	if f.Category != "" {
		return r.listCategory(ctx, f)
	}
	q := store.Query{Index: store.GSI3, PK: keys.EntityGSI3PK(keys.TypeCourse), Descending: true, Limit: f.Limit}
	if f.Status != "" {
		q.Index, q.PK = store.GSI2, keys.StatusGSI2PK(string(f.Status))
	}
	recs, err := queryRecords[courseRecord](ctx, r.st, q)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	courses := make([]*domain.Course, 0, len(recs))
	for i := range recs {
		courses = append(courses, toDomainCourse(&recs[i]))
	}
	return courses, nil
}

// listCategory reads one status of a category as a sort key prefix. Without a
// status the newest courses of every status are merged.
func (r *CourseRepository) listCategory(ctx context.Context, f CourseFilter) ([]*domain.Course, error) {
	statuses := []domain.CourseStatus{f.Status}
	if f.Status == "" {
		statuses = []domain.CourseStatus{domain.CourseDraft, domain.CoursePublished, domain.CourseArchived}
	}
	var courses []*domain.Course
	for _, status := range statuses {
		recs, err := queryRecords[courseRecord](ctx, r.st, store.Query{
			Index:      store.GSI1,
			PK:         keys.CategoryGSI1PK(f.Category),
			SKPrefix:   keys.CategoryStatusPrefix(string(status)),
			Descending: true,
			Limit:      f.Limit,
		})
		if err != nil {
			return nil, fmt.Errorf("list courses of %s: %w", f.Category, err)
		}
		for i := range recs {
			courses = append(courses, toDomainCourse(&recs[i]))
		}
	}
	slices.SortStableFunc(courses, func(a, b *domain.Course) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if f.Limit > 0 && len(courses) > f.Limit {
		courses = courses[:f.Limit]
	}
	return courses, nil
}

func courseKey(id string) store.Key {
	return store.Key{PK: keys.CoursePK(id), SK: keys.Metadata}
}
