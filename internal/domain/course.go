package domain

import "time"

type CourseStatus string

const (
	CourseDraft     CourseStatus = "DRAFT"
	CoursePublished CourseStatus = "PUBLISHED"
	CourseArchived  CourseStatus = "ARCHIVED"
)

func (s CourseStatus) Valid() bool {
	switch s {
	case CourseDraft, CoursePublished, CourseArchived:
		return true
	}
	return false
}

type Course struct {
	ID            string       `json:"courseId"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Category      string       `json:"category"`
	Level         string       `json:"level,omitempty"`
	Language      string       `json:"language,omitempty"`
	Price         float64      `json:"price"`
	InstructorID  string       `json:"instructorId,omitempty"`
	SchoolID      string       `json:"schoolId,omitempty"`
	ThumbnailURL  string       `json:"thumbnailUrl,omitempty"`
	Tags          []string     `json:"tags,omitempty"`
	Status        CourseStatus `json:"status"`
	TotalStudents int          `json:"totalStudents"`
	TotalLessons  int          `json:"totalLessons"`
	TotalSections int          `json:"totalSections"`
	AverageRating float64      `json:"averageRating"`
	CreatedBy     string       `json:"createdBy,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

func (c *Course) IsFree() bool {
	return c.Price <= 0
}

type Section struct {
	ID          string    `json:"sectionId"`
	CourseID    string    `json:"courseId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Order       int       `json:"order"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Lesson struct {
	ID          string    `json:"lessonId"`
	CourseID    string    `json:"courseId"`
	SectionID   string    `json:"sectionId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	VideoURL    string    `json:"videoUrl,omitempty"`
	Duration    int       `json:"duration"`
	Order       int       `json:"order"`
	IsPreview   bool      `json:"isPreview"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SectionOutline is a section with its lessons in display order.
type SectionOutline struct {
	Section
	Lessons []Lesson `json:"lessons"`
}

type CourseOutline struct {
	Course
	Sections []SectionOutline `json:"sections"`
}

// OrderChange is one item of a reorder request.
type OrderChange struct {
	ID    string `json:"id" binding:"required"`
	Order int    `json:"order" binding:"required,min=1"`
}
