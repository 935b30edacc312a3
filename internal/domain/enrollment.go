package domain

import "time"

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "ACTIVE"
	EnrollmentCompleted EnrollmentStatus = "COMPLETED"
)

type Progress struct {
	CompletedLessons     int `json:"completedLessons"`
	TotalLessons         int `json:"totalLessons"`
	CompletionPercentage int `json:"completionPercentage"`
}

// Percentage is floor(completed*100/total), 0 for an empty course.
func (p Progress) Percentage() int {
	if p.TotalLessons <= 0 {
		return 0
	}
	completed := p.CompletedLessons
	if completed > p.TotalLessons {
		completed = p.TotalLessons
	}
	return completed * 100 / p.TotalLessons
}

type Enrollment struct {
	UserID         string           `json:"userId"`
	CourseID       string           `json:"courseId"`
	CourseTitle    string           `json:"courseTitle"`
	PaymentID      string           `json:"paymentId,omitempty"`
	Status         EnrollmentStatus `json:"status"`
	Progress       Progress         `json:"progress"`
	EnrolledAt     time.Time        `json:"enrolledAt"`
	LastAccessedAt time.Time        `json:"lastAccessedAt"`
	CompletedAt    *time.Time       `json:"completedAt,omitempty"`
}

type LessonStatus string

const (
	LessonInProgress LessonStatus = "IN_PROGRESS"
	LessonCompleted  LessonStatus = "COMPLETED"
)

func (s LessonStatus) Valid() bool {
	return s == LessonInProgress || s == LessonCompleted
}

type LessonProgress struct {
	UserID       string       `json:"userId"`
	CourseID     string       `json:"courseId"`
	LessonID     string       `json:"lessonId"`
	Status       LessonStatus `json:"status"`
	LastPosition int          `json:"lastPosition"`
	StartedAt    time.Time    `json:"startedAt"`
	CompletedAt  *time.Time   `json:"completedAt,omitempty"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}
