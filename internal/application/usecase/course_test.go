package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnplatform/internal/domain"
)

func sectionTitles(t *testing.T, e *env, courseID string) []string {
	t.Helper()
	outline, err := e.courses.Get(e.ctx, courseID, true)
	require.NoError(t, err)
	titles := make([]string, 0, len(outline.Sections))
	for _, s := range outline.Sections {
		titles = append(titles, s.Title)
	}
	return titles
}

func newCourseWithSections(t *testing.T, e *env, titles ...string) (*domain.Course, []*domain.Section) {
	t.Helper()
	c, err := e.courses.Create(e.ctx, "admin", CourseInput{Title: "Distributed systems", Category: "Engineering", Price: 49.999})
	require.NoError(t, err)
	var sections []*domain.Section
	for _, title := range titles {
		s, err := e.courses.CreateSection(e.ctx, c.ID, title, "")
		require.NoError(t, err)
		sections = append(sections, s)
	}
	return c, sections
}

func TestCreateCourse(t *testing.T) {
	e := newEnv(t)
	c, err := e.courses.Create(e.ctx, "admin", CourseInput{Title: "Go", Price: 19.999})
	require.NoError(t, err)
	assert.Equal(t, domain.CourseDraft, c.Status)
	assert.Equal(t, 20.0, c.Price)

	_, err = e.courses.Create(e.ctx, "admin", CourseInput{Title: " "})
	assert.Error(t, err)
	_, err = e.courses.Create(e.ctx, "admin", CourseInput{Title: "Go", Price: -1})
	assert.Error(t, err)
}

func TestDraftCoursesAreHiddenFromTheCatalog(t *testing.T) {
	e := newEnv(t)
	draft, _ := newCourseWithSections(t, e, "Intro")
	published := e.publishedCourse(t, 10, 2)

	_, err := e.courses.Get(e.ctx, draft.ID, false)
	assert.ErrorIs(t, err, domain.ErrCourseNotFound)
	outline, err := e.courses.Get(e.ctx, draft.ID, true)
	require.NoError(t, err)
	assert.Len(t, outline.Sections, 1)

	listed, err := e.courses.List(e.ctx, "", "PUBLISHED", 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, published.ID, listed[0].ID)

	byCategory, err := e.courses.List(e.ctx, "programming", "", 0)
	require.NoError(t, err)
	require.Len(t, byCategory, 1)

	_, err = e.courses.List(e.ctx, "", "HIDDEN", 0)
	assert.Error(t, err)

	archived, err := e.courses.Archive(e.ctx, published.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CourseArchived, archived.Status)
	_, err = e.courses.Get(e.ctx, published.ID, false)
	assert.ErrorIs(t, err, domain.ErrCourseNotFound)
}

func TestUpdateCourseValidatesChanges(t *testing.T) {
	e := newEnv(t)
	c, _ := newCourseWithSections(t, e)

	for _, changes := range []map[string]any{
		{},
		{"status": "LIVE"},
		{"price": -5.0},
		{"price": "free"},
		{"title": ""},
	} {
		_, err := e.courses.Update(e.ctx, c.ID, changes)
		kind, _ := domain.KindOf(err)
		assert.Equal(t, domain.KindValidation, kind, "%v", changes)
	}

	updated, err := e.courses.Update(e.ctx, c.ID, map[string]any{"price": 12.346, "title": "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, 12.35, updated.Price)
	assert.Equal(t, "Renamed", updated.Title)

	_, err = e.courses.Update(e.ctx, "missing", map[string]any{"title": "x"})
	assert.ErrorIs(t, err, domain.ErrCourseNotFound)
}

func TestSectionsAppendInOrder(t *testing.T) {
	e := newEnv(t)
	c, sections := newCourseWithSections(t, e, "One", "Two", "Three")
	for i, s := range sections {
		assert.Equal(t, i+1, s.Order)
	}
	course, err := e.courseRepo.Get(e.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, course.TotalSections)

	require.NoError(t, e.courses.DeleteSection(e.ctx, c.ID, sections[1].ID))
	s, err := e.courses.CreateSection(e.ctx, c.ID, "Four", "")
	require.NoError(t, err)
	assert.Equal(t, 4, s.Order, "new sections go after the current last one")
	assert.Equal(t, []string{"One", "Three", "Four"}, sectionTitles(t, e, c.ID))

	_, err = e.courses.CreateSection(e.ctx, "missing", "x", "")
	assert.ErrorIs(t, err, domain.ErrCourseNotFound)
}

func TestUpdateSection(t *testing.T) {
	e := newEnv(t)
	c, sections := newCourseWithSections(t, e, "One")
	title, desc := "First steps", "setup"

	s, err := e.courses.UpdateSection(e.ctx, c.ID, sections[0].ID, &title, &desc)
	require.NoError(t, err)
	assert.Equal(t, "First steps", s.Title)
	assert.Equal(t, 1, s.Order)

	empty := ""
	_, err = e.courses.UpdateSection(e.ctx, c.ID, sections[0].ID, &empty, nil)
	assert.Error(t, err)
	_, err = e.courses.UpdateSection(e.ctx, c.ID, "missing", &title, nil)
	assert.ErrorIs(t, err, domain.ErrSectionNotFound)
}

func TestDeleteSectionTakesItsLessons(t *testing.T) {
	e := newEnv(t)
	c, sections := newCourseWithSections(t, e, "One", "Two")
	for i := 0; i < 3; i++ {
		_, err := e.courses.CreateLesson(e.ctx, c.ID, sections[0].ID, LessonInput{Title: "L"})
		require.NoError(t, err)
	}
	_, err := e.courses.CreateLesson(e.ctx, c.ID, sections[1].ID, LessonInput{Title: "Kept"})
	require.NoError(t, err)

	require.NoError(t, e.courses.DeleteSection(e.ctx, c.ID, sections[0].ID))

	course, err := e.courseRepo.Get(e.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, course.TotalSections)
	assert.Equal(t, 1, course.TotalLessons)
	outline, err := e.courses.Get(e.ctx, c.ID, true)
	require.NoError(t, err)
	require.Len(t, outline.Sections, 1)
	require.Len(t, outline.Sections[0].Lessons, 1)
	assert.Equal(t, "Kept", outline.Sections[0].Lessons[0].Title)

	assert.ErrorIs(t, e.courses.DeleteSection(e.ctx, c.ID, sections[0].ID), domain.ErrSectionNotFound)
}

func TestReorderSectionsSwap(t *testing.T) {
	e := newEnv(t)
	c, s := newCourseWithSections(t, e, "A", "B", "C")

	got, err := e.courses.ReorderSections(e.ctx, c.ID, []domain.OrderChange{
		{ID: s[0].ID, Order: 2},
		{ID: s[1].ID, Order: 1},
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"B", "A", "C"}, sectionTitles(t, e, c.ID))
}

func TestReorderSectionsIntoFreeSlot(t *testing.T) {
	e := newEnv(t)
	c, s := newCourseWithSections(t, e, "A", "B", "C")

	_, err := e.courses.ReorderSections(e.ctx, c.ID, []domain.OrderChange{{ID: s[0].ID, Order: 5}})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "A"}, sectionTitles(t, e, c.ID))

	next, err := e.courses.CreateSection(e.ctx, c.ID, "D", "")
	require.NoError(t, err)
	assert.Equal(t, 6, next.Order)
}

func TestReorderSectionsRejectsBadRequests(t *testing.T) {
	e := newEnv(t)
	c, s := newCourseWithSections(t, e, "A", "B", "C")

	_, err := e.courses.ReorderSections(e.ctx, c.ID, []domain.OrderChange{{ID: s[0].ID, Order: 3}})
	kind, _ := domain.KindOf(err)
	assert.Equal(t, domain.KindConflict, kind, "slot 3 is held by C")

	_, err = e.courses.ReorderSections(e.ctx, c.ID, []domain.OrderChange{
		{ID: s[0].ID, Order: 2},
		{ID: s[1].ID, Order: 2},
	})
	kind, _ = domain.KindOf(err)
	assert.Equal(t, domain.KindValidation, kind)

	_, err = e.courses.ReorderSections(e.ctx, c.ID, []domain.OrderChange{{ID: "missing", Order: 9}})
	assert.ErrorIs(t, err, domain.ErrSectionNotFound)

	assert.Equal(t, []string{"A", "B", "C"}, sectionTitles(t, e, c.ID))
}

func TestLessonsLifecycle(t *testing.T) {
	e := newEnv(t)
	c, s := newCourseWithSections(t, e, "A")

	var lessons []*domain.Lesson
	for _, title := range []string{"one", "two", "three"} {
		l, err := e.courses.CreateLesson(e.ctx, c.ID, s[0].ID, LessonInput{Title: title, Duration: 60})
		require.NoError(t, err)
		lessons = append(lessons, l)
	}
	assert.Equal(t, 3, lessons[2].Order)

	_, err := e.courses.CreateLesson(e.ctx, c.ID, "missing", LessonInput{Title: "x"})
	assert.ErrorIs(t, err, domain.ErrSectionNotFound)

	updated, err := e.courses.UpdateLesson(e.ctx, c.ID, lessons[0].ID, map[string]any{"title": "uno", "isPreview": true})
	require.NoError(t, err)
	assert.Equal(t, "uno", updated.Title)
	assert.True(t, updated.IsPreview)

	reordered, err := e.courses.ReorderLessons(e.ctx, c.ID, []domain.OrderChange{
		{ID: lessons[2].ID, Order: 1},
		{ID: lessons[0].ID, Order: 3},
	})
	require.NoError(t, err)
	require.Len(t, reordered, 2)
	assert.Equal(t, lessons[2].ID, reordered[0].ID)

	outline, err := e.courses.Get(e.ctx, c.ID, true)
	require.NoError(t, err)
	var titles []string
	for _, l := range outline.Sections[0].Lessons {
		titles = append(titles, l.Title)
	}
	assert.Equal(t, []string{"three", "two", "uno"}, titles)

	require.NoError(t, e.courses.DeleteLesson(e.ctx, c.ID, lessons[1].ID))
	assert.ErrorIs(t, e.courses.DeleteLesson(e.ctx, c.ID, lessons[1].ID), domain.ErrLessonNotFound)
	course, err := e.courseRepo.Get(e.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, course.TotalLessons)
}

func TestReorderLessonsChecksOrdersPerSection(t *testing.T) {
	e := newEnv(t)
	c, s := newCourseWithSections(t, e, "A", "B")

	lessons := make(map[string][]*domain.Lesson)
	for _, section := range s {
		for _, title := range []string{section.Title + "1", section.Title + "2"} {
			l, err := e.courses.CreateLesson(e.ctx, c.ID, section.ID, LessonInput{Title: title, Duration: 30})
			require.NoError(t, err)
			lessons[section.Title] = append(lessons[section.Title], l)
		}
	}

	reordered, err := e.courses.ReorderLessons(e.ctx, c.ID, []domain.OrderChange{
		{ID: lessons["A"][0].ID, Order: 2},
		{ID: lessons["A"][1].ID, Order: 1},
		{ID: lessons["B"][0].ID, Order: 2},
		{ID: lessons["B"][1].ID, Order: 1},
	})
	require.NoError(t, err)
	require.Len(t, reordered, 4)

	outline, err := e.courses.Get(e.ctx, c.ID, true)
	require.NoError(t, err)
	var titles []string
	for _, section := range outline.Sections {
		for _, l := range section.Lessons {
			titles = append(titles, l.Title)
		}
	}
	assert.Equal(t, []string{"A2", "A1", "B2", "B1"}, titles)

	_, err = e.courses.ReorderLessons(e.ctx, c.ID, []domain.OrderChange{
		{ID: lessons["A"][0].ID, Order: 5},
		{ID: lessons["A"][1].ID, Order: 5},
	})
	kind, _ := domain.KindOf(err)
	assert.Equal(t, domain.KindValidation, kind)

	_, err = e.courses.ReorderLessons(e.ctx, c.ID, []domain.OrderChange{{ID: "missing", Order: 1}})
	assert.ErrorIs(t, err, domain.ErrLessonNotFound)
}
