package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"learnplatform/internal/domain"
	"learnplatform/internal/infrastructure/repository"
	"learnplatform/internal/infrastructure/store"
)

const (
	defaultCoursePageSize = 20
	maxCoursePageSize     = 100
	maxTransactionOps     = 100
)

type CourseInput struct {
	Title        string
	Description  string
	Category     string
	Level        string
	Language     string
	Price        float64
	ThumbnailURL string
	InstructorID string
	SchoolID     string
	Tags         []string
}

type LessonInput struct {
	Title       string
	Description string
	VideoURL    string
	Duration    int
	IsPreview   bool
}

type CourseUseCase struct {
	courses  *repository.CourseRepository
	sections *repository.SectionRepository
	lessons  *repository.LessonRepository
	tx       store.Transactor
	cache    CatalogCache
	log      *zap.Logger
	now      func() time.Time
}

func NewCourseUseCase(
	courses *repository.CourseRepository,
	sections *repository.SectionRepository,
	lessons *repository.LessonRepository,
	tx store.Transactor,
	cache CatalogCache,
	log *zap.Logger,
	now func() time.Time,
) *CourseUseCase {
	if cache == nil {
		cache = noCache{}
	}
	return &CourseUseCase{
		courses:  courses,
		sections: sections,
		lessons:  lessons,
		tx:       tx,
		cache:    cache,
		log:      log,
		now:      now,
	}
}

func (uc *CourseUseCase) Create(ctx context.Context, createdBy string, in CourseInput) (*domain.Course, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, domain.Validation("Title is required")
	}
	if in.Price < 0 {
		return nil, domain.Validation("Price cannot be negative")
	}
	now := uc.now()
	course := &domain.Course{
		ID:           uuid.NewString(),
		Title:        in.Title,
		Description:  in.Description,
		Category:     in.Category,
		Level:        in.Level,
		Language:     in.Language,
		Price:        domain.RoundMoney(in.Price),
		InstructorID: in.InstructorID,
		SchoolID:     in.SchoolID,
		ThumbnailURL: in.ThumbnailURL,
		Tags:         in.Tags,
		Status:       domain.CourseDraft,
		CreatedBy:    createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.courses.Create(ctx, course); err != nil {
		return nil, err
	}
	uc.cache.Invalidate(ctx, "")
	uc.log.Info("course created", zap.String("courseId", course.ID), zap.String("by", createdBy))
	return course, nil
}

// List reads one index: by category, by status or all courses, newest first.
func (uc *CourseUseCase) List(ctx context.Context, category, status string, limit int) ([]*domain.Course, error) {
	if status != "" && !domain.CourseStatus(status).Valid() {
		return nil, domain.Validation("Unknown course status %s", status)
	}
	if limit <= 0 {
		limit = defaultCoursePageSize
	}
	limit = min(limit, maxCoursePageSize)

	if cached, ok := uc.cache.Courses(ctx, category, status, limit); ok {
		return cached, nil
	}
	courses, err := uc.courses.List(ctx, repository.CourseFilter{
		Category: category,
		Status:   domain.CourseStatus(status),
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}
	uc.cache.StoreCourses(ctx, category, status, limit, courses)
	return courses, nil
}

// Get returns the course with its sections and their lessons in display
// order. Unpublished courses are only shown when includeUnpublished is set.
func (uc *CourseUseCase) Get(ctx context.Context, id string, includeUnpublished bool) (*domain.CourseOutline, error) {
	if cached, ok := uc.cache.Outline(ctx, id); ok {
		return cached, nil
	}
	course, err := uc.courses.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if course.Status != domain.CoursePublished && !includeUnpublished {
		return nil, domain.ErrCourseNotFound
	}
	sections, err := uc.sections.List(ctx, id)
	if err != nil {
		return nil, err
	}

	outline := &domain.CourseOutline{Course: *course, Sections: make([]domain.SectionOutline, len(sections))}
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range sections {
		outline.Sections[i].Section = *s
		g.Go(func() error {
			lessons, err := uc.lessons.ListBySection(gctx, id, s.ID)
			if err != nil {
				return err
			}
			out := make([]domain.Lesson, 0, len(lessons))
			for _, l := range lessons {
				out = append(out, *l)
			}
			outline.Sections[i].Lessons = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load course outline: %w", err)
	}

	if course.Status == domain.CoursePublished {
		uc.cache.StoreOutline(ctx, outline)
	}
	return outline, nil
}

func (uc *CourseUseCase) Update(ctx context.Context, id string, changes map[string]any) (*domain.Course, error) {
	if len(changes) == 0 {
		return nil, domain.Validation("No fields to update")
	}
	if err := validateCourseChanges(changes); err != nil {
		return nil, err
	}
	course, err := uc.courses.Update(ctx, id, changes, uc.now())
	if err != nil {
		return nil, err
	}
	uc.cache.Invalidate(ctx, id)
	return course, nil
}

func validateCourseChanges(changes map[string]any) error {
	if v, ok := changes["status"]; ok {
		s, isString := v.(string)
		if !isString || !domain.CourseStatus(s).Valid() {
			return domain.Validation("Unknown course status %v", v)
		}
	}
	if v, ok := changes["price"]; ok {
		p, isNumber := v.(float64)
		if !isNumber || p < 0 {
			return domain.Validation("Price must be a non-negative number")
		}
		changes["price"] = domain.RoundMoney(p)
	}
	if v, ok := changes["title"]; ok {
		if s, isString := v.(string); !isString || strings.TrimSpace(s) == "" {
			return domain.Validation("Title cannot be empty")
		}
	}
	return nil
}

// Archive hides a course from the catalog. Enrollments and payments stay.
func (uc *CourseUseCase) Archive(ctx context.Context, id string) (*domain.Course, error) {
	return uc.Update(ctx, id, map[string]any{"status": string(domain.CourseArchived)})
}

// CreateSection appends a section after the current last one. Two concurrent
// creates compete for the same position; the loser gets a conflict.
func (uc *CourseUseCase) CreateSection(ctx context.Context, courseID, title, description string) (*domain.Section, error) {
	if _, err := uc.courses.Get(ctx, courseID); err != nil {
		return nil, err
	}
	last, err := uc.sections.Last(ctx, courseID)
	if err != nil {
		return nil, err
	}
	order := 1
	if last != nil {
		order = last.Order + 1
	}
	now := uc.now()
	section := &domain.Section{
		ID:          uuid.NewString(),
		CourseID:    courseID,
		Title:       title,
		Description: description,
		Order:       order,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.sections.Create(ctx, section); err != nil {
		return nil, err
	}
	if _, err := uc.courses.Increment(ctx, courseID, repository.CounterSections, 1); err != nil {
		return nil, err
	}
	uc.cache.Invalidate(ctx, courseID)
	return section, nil
}

func (uc *CourseUseCase) UpdateSection(ctx context.Context, courseID, sectionID string, title, description *string) (*domain.Section, error) {
	section, err := uc.sections.Find(ctx, courseID, sectionID)
	if err != nil {
		return nil, err
	}
	if title != nil {
		if strings.TrimSpace(*title) == "" {
			return nil, domain.Validation("Title cannot be empty")
		}
		section.Title = *title
	}
	if description != nil {
		section.Description = *description
	}
	section.UpdatedAt = uc.now()
	if err := uc.sections.Replace(ctx, section); err != nil {
		return nil, err
	}
	uc.cache.Invalidate(ctx, courseID)
	return section, nil
}

// DeleteSection removes the section with its lessons and adjusts the course
// counters.
func (uc *CourseUseCase) DeleteSection(ctx context.Context, courseID, sectionID string) error {
	section, err := uc.sections.Find(ctx, courseID, sectionID)
	if err != nil {
		return err
	}
	lessons, err := uc.lessons.ListBySection(ctx, courseID, sectionID)
	if err != nil {
		return err
	}

	ops := []store.WriteOp{
		uc.sections.DeleteOp(courseID, section.Order),
		uc.courses.IncrementOp(courseID, repository.CounterSections, -1),
	}
	if len(lessons) > 0 {
		ops = append(ops, uc.courses.IncrementOp(courseID, repository.CounterLessons, -len(lessons)))
	}
	for _, l := range lessons {
		ops = append(ops, uc.lessons.DeleteOp(courseID, l.ID))
	}
	for start := 0; start < len(ops); start += maxTransactionOps {
		end := min(start+maxTransactionOps, len(ops))
		if err := uc.tx.Transact(ctx, ops[start:end]...); err != nil {
			if errors.Is(err, store.ErrConditionFailed) {
				return domain.Conflict("Section changed while deleting, try again")
			}
			return fmt.Errorf("delete section %s: %w", sectionID, err)
		}
	}
	uc.cache.Invalidate(ctx, courseID)
	return nil
}

// ReorderSections moves sections to new positions in one transaction. Moved
// sections are rewritten under their new sort keys and vacated keys deleted.
func (uc *CourseUseCase) ReorderSections(ctx context.Context, courseID string, changes []domain.OrderChange) ([]*domain.Section, error) {
	if len(changes) == 0 {
		return nil, domain.Validation("No sections to reorder")
	}
	if err := uniqueOrders(changes); err != nil {
		return nil, err
	}
	current, err := uc.sections.List(ctx, courseID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Section, len(current))
	for _, s := range current {
		byID[s.ID] = s
	}

	moved := make(map[string]int)
	for _, c := range changes {
		s, ok := byID[c.ID]
		if !ok {
			return nil, domain.ErrSectionNotFound
		}
		if s.Order != c.Order {
			moved[s.ID] = c.Order
		}
	}
	if len(moved) == 0 {
		return current, nil
	}

	vacated := make(map[int]bool)
	for id := range moved {
		vacated[byID[id].Order] = true
	}
	taken := make(map[int]bool)
	for _, s := range current {
		if _, ok := moved[s.ID]; !ok {
			taken[s.Order] = true
		}
	}

	now := uc.now()
	var ops []store.WriteOp
	targets := make(map[int]bool)
	for id, order := range moved {
		if taken[order] {
			return nil, domain.Conflict("Position %d is held by a section that is not being moved", order)
		}
		targets[order] = true
		s := *byID[id]
		s.Order = order
		s.UpdatedAt = now
		cond := store.IfNotExists
		if vacated[order] {
			cond = store.Always
		}
		op, err := uc.sections.PutOp(&s, cond)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	for order := range vacated {
		if !targets[order] {
			ops = append(ops, uc.sections.DeleteOp(courseID, order))
		}
	}
	if len(ops) > maxTransactionOps {
		return nil, domain.Validation("Too many sections in one reorder")
	}
	if err := uc.tx.Transact(ctx, ops...); err != nil {
		if errors.Is(err, store.ErrConditionFailed) {
			return nil, domain.Conflict("Sections changed while reordering, try again")
		}
		return nil, fmt.Errorf("reorder sections: %w", err)
	}
	uc.cache.Invalidate(ctx, courseID)
	return uc.sections.List(ctx, courseID)
}

func uniqueOrders(changes []domain.OrderChange) error {
	ids := make(map[string]bool, len(changes))
	orders := make(map[int]bool, len(changes))
	for _, c := range changes {
		if c.Order < 1 {
			return domain.Validation("Order must be positive")
		}
		if ids[c.ID] {
			return domain.Validation("Item %s appears twice", c.ID)
		}
		if orders[c.Order] {
			return domain.Validation("Order %d appears twice", c.Order)
		}
		ids[c.ID] = true
		orders[c.Order] = true
	}
	return nil
}

// CreateLesson appends a lesson to the end of its section.
func (uc *CourseUseCase) CreateLesson(ctx context.Context, courseID, sectionID string, in LessonInput) (*domain.Lesson, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, domain.Validation("Title is required")
	}
	if _, err := uc.sections.Find(ctx, courseID, sectionID); err != nil {
		return nil, err
	}
	siblings, err := uc.lessons.ListBySection(ctx, courseID, sectionID)
	if err != nil {
		return nil, err
	}
	order := 1
	for _, l := range siblings {
		order = max(order, l.Order+1)
	}

	now := uc.now()
	lesson := &domain.Lesson{
		ID:          uuid.NewString(),
		CourseID:    courseID,
		SectionID:   sectionID,
		Title:       in.Title,
		Description: in.Description,
		VideoURL:    in.VideoURL,
		Duration:    in.Duration,
		Order:       order,
		IsPreview:   in.IsPreview,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	create, err := uc.lessons.CreateOp(lesson)
	if err != nil {
		return nil, err
	}
	err = uc.tx.Transact(ctx, create, uc.courses.IncrementOp(courseID, repository.CounterLessons, 1))
	if store.FailedOp(err) == 1 {
		return nil, domain.ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("create lesson: %w", err)
	}
	uc.cache.Invalidate(ctx, courseID)
	return lesson, nil
}

func (uc *CourseUseCase) UpdateLesson(ctx context.Context, courseID, lessonID string, changes map[string]any) (*domain.Lesson, error) {
	if len(changes) == 0 {
		return nil, domain.Validation("No fields to update")
	}
	lesson, err := uc.lessons.Update(ctx, courseID, lessonID, changes, uc.now())
	if err != nil {
		return nil, err
	}
	uc.cache.Invalidate(ctx, courseID)
	return lesson, nil
}

func (uc *CourseUseCase) DeleteLesson(ctx context.Context, courseID, lessonID string) error {
	err := uc.tx.Transact(ctx,
		uc.lessons.DeleteOp(courseID, lessonID),
		uc.courses.IncrementOp(courseID, repository.CounterLessons, -1),
	)
	switch store.FailedOp(err) {
	case 0:
		return domain.ErrLessonNotFound
	case 1:
		return domain.ErrCourseNotFound
	}
	if err != nil {
		return fmt.Errorf("delete lesson %s: %w", lessonID, err)
	}
	uc.cache.Invalidate(ctx, courseID)
	return nil
}

// ReorderLessons sets each lesson's position; the updates run concurrently.
// Orders only need to be unique within a section.
func (uc *CourseUseCase) ReorderLessons(ctx context.Context, courseID string, changes []domain.OrderChange) ([]*domain.Lesson, error) {
	if len(changes) == 0 {
		return nil, domain.Validation("No lessons to reorder")
	}
	current, err := uc.lessons.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	sectionOf := make(map[string]string, len(current))
	for _, l := range current {
		sectionOf[l.ID] = l.SectionID
	}
	bySection := make(map[string][]domain.OrderChange)
	seen := make(map[string]bool, len(changes))
	for _, c := range changes {
		sectionID, ok := sectionOf[c.ID]
		if !ok {
			return nil, domain.ErrLessonNotFound
		}
		if seen[c.ID] {
			return nil, domain.Validation("Item %s appears twice", c.ID)
		}
		seen[c.ID] = true
		bySection[sectionID] = append(bySection[sectionID], c)
	}
	for _, group := range bySection {
		if err := uniqueOrders(group); err != nil {
			return nil, err
		}
	}
	now := uc.now()
	updated := make([]*domain.Lesson, len(changes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(10)
	for i, c := range changes {
		g.Go(func() error {
			l, err := uc.lessons.SetOrder(gctx, courseID, c.ID, c.Order, now)
			if err != nil {
				return err
			}
			updated[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.SliceStable(updated, func(i, j int) bool {
		if updated[i].SectionID != updated[j].SectionID {
			return updated[i].SectionID < updated[j].SectionID
		}
		return updated[i].Order < updated[j].Order
	})
	uc.cache.Invalidate(ctx, courseID)
	return updated, nil
}
