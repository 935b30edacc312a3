// Package keys derives the partition, sort and secondary-index keys of every
// record kept in the single table.
package keys

import (
	"strings"
	"time"
)

// Entity tags stored in the EntityType attribute.
const (
	TypeUser             = "USER"
	TypeUsername         = "USERNAME"
	TypeEmail            = "EMAIL"
	TypeSession          = "SESSION"
	TypeSupersededToken  = "SUPERSEDED_TOKEN"
	TypeCourse           = "COURSE"
	TypeSection          = "SECTION"
	TypeLesson           = "LESSON"
	TypeEnrollment       = "ENROLLMENT"
	TypeLessonProgress   = "LESSON_PROGRESS"
	TypeCoupon           = "COUPON"
	TypePayment          = "PAYMENT"
	TypeSchool           = "SCHOOL"
	TypeSchoolInstructor = "SCHOOL_INSTRUCTOR"
	TypeResetToken       = "PASSWORD_RESET_TOKEN"
)

const (
	Metadata   = "METADATA"
	Superseded = "SUPERSEDED"

	SessionPrefix    = "SESSION#"
	SectionPrefix    = "SECTION#"
	LessonPrefix     = "LESSON#"
	EnrollmentPrefix = "ENROLLMENT#"
	ProgressPrefix   = "PROGRESS#"
	PaymentPrefix    = "PAYMENT#"
	InstructorPrefix = "INSTRUCTOR#"
)

func NormalizeEmail(email string) string       { return strings.ToLower(strings.TrimSpace(email)) }
func NormalizeUsername(username string) string { return strings.ToLower(strings.TrimSpace(username)) }
func NormalizeCouponCode(code string) string   { return strings.ToUpper(strings.TrimSpace(code)) }

// Partition keys
func UserPK(id string) string         { return "USER#" + id }
func UsernamePK(u string) string      { return "USERNAME#" + NormalizeUsername(u) }
func EmailPK(e string) string         { return "EMAIL#" + NormalizeEmail(e) }
func RefreshPK(hash string) string    { return "REFRESH#" + hash }
func CoursePK(id string) string       { return "COURSE#" + id }
func CouponPK(code string) string     { return "COUPON#" + NormalizeCouponCode(code) }
func SchoolPK(id string) string       { return "SCHOOL#" + id }
func ResetTokenPK(hash string) string { return "RESET_TOKEN#" + hash }

// Sort keys
func SessionSK(id string) string          { return SessionPrefix + id }
func SectionSK(order int) string          { return SectionPrefix + OrderKey(order) }
func LessonSK(id string) string           { return LessonPrefix + id }
func EnrollmentSK(courseID string) string { return EnrollmentPrefix + courseID }
func PaymentSK(id string) string          { return PaymentPrefix + id }
func InstructorSK(userID string) string   { return InstructorPrefix + userID }

func ProgressSK(courseID, lessonID string) string {
	return ProgressCoursePrefix(courseID) + "lesson" + lessonID
}

func ProgressCoursePrefix(courseID string) string {
	return ProgressPrefix + courseID + "#"
}

// Secondary index keys
func EmailGSI1PK(email string) string { return EmailPK(email) }
func RoleGSI2PK(role string) string   { return "ROLE#" + role }
func UsernameGSI2SK(u string) string  { return UsernamePK(u) }
func EntityGSI3PK(kind string) string { return "ENTITY#" + kind }

func CategoryGSI1PK(category string) string {
	return "CATEGORY#" + strings.ToLower(strings.TrimSpace(category))
}

func StatusGSI2PK(status string) string { return "STATUS#" + status }

// CategoryGSI1SK orders a category's courses by status, then age, so that one
// status of a category is a prefix query.
func CategoryGSI1SK(status string, created time.Time) string {
	return CategoryStatusPrefix(status) + TimeKey(created)
}

func CategoryStatusPrefix(status string) string { return "STATUS#" + status + "#" }

func LessonGSI1PK(courseID, sectionID string) string {
	return CoursePK(courseID) + "#SECTION#" + sectionID
}

func LessonGSI1SK(order int) string { return LessonPrefix + OrderKey(order) }

func CourseEnrollmentsGSI1PK(courseID string) string { return CoursePK(courseID) + "#ENROLLMENT" }
func CoursePaymentsGSI1PK(courseID string) string    { return CoursePK(courseID) + "#PAYMENT" }
func SchoolAdminGSI1PK(userID string) string         { return "SCHOOL_ADMIN#" + userID }
func InstructorGSI1PK(userID string) string          { return InstructorPrefix + userID }

// TimeKey renders t at fixed width so that index sort keys built from
// timestamps order chronologically.
func TimeKey(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}
