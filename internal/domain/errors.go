package domain

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindNotFound
	KindConflict
	KindAuth
	KindPermission
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindPermission:
		return "permission"
	default:
		return "unknown"
	}
}

// Error is a failure the caller can act on. Anything that is not an *Error is
// treated as unhandled by the transport layer.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Message: msg}
}

func Validation(format string, args ...any) error { return newError(KindValidation, format, args...) }
func NotFound(format string, args ...any) error   { return newError(KindNotFound, format, args...) }
func Conflict(format string, args ...any) error   { return newError(KindConflict, format, args...) }
func Unauthorized(format string, args ...any) error {
	return newError(KindAuth, format, args...)
}
func Forbidden(format string, args ...any) error { return newError(KindPermission, format, args...) }

// KindOf reports the taxonomy kind of err, unwrapping as needed.
func KindOf(err error) (ErrorKind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}

var (
	ErrUserNotFound      = NotFound("User not found")
	ErrUserAlreadyExists = Conflict("User already exists")
	ErrUsernameTaken     = Conflict("Username already exists")
	ErrEmailTaken        = Conflict("Email already exists")
	ErrInvalidCredential = Unauthorized("Invalid credentials")
	ErrUserInactive      = Unauthorized("User account is deactivated")

	ErrSessionNotFound     = NotFound("Session not found")
	ErrSessionExpired      = Unauthorized("Session expired")
	ErrInvalidRefreshToken = Unauthorized("Invalid refresh token")
	ErrRefreshTokenReused  = Unauthorized("Refresh token reuse detected, session revoked")

	ErrResetTokenInvalid = Validation("Invalid reset token")
	ErrResetTokenUsed    = Validation("Reset token has already been used")
	ErrResetTokenExpired = Validation("Reset token has expired")

	ErrCourseNotFound   = NotFound("Course not found")
	ErrCourseNotActive  = Validation("Course is not available for enrollment")
	ErrSectionNotFound  = NotFound("Section not found")
	ErrLessonNotFound   = NotFound("Lesson not found")
	ErrPaymentRequired  = Validation("Course requires payment")
	ErrAlreadyEnrolled  = Conflict("Already enrolled in this course")
	ErrNotEnrolled      = Forbidden("Not enrolled in this course")
	ErrEnrollmentAbsent = NotFound("Enrollment not found")

	ErrCouponNotFound  = NotFound("Coupon not found")
	ErrCouponExists    = Conflict("Coupon code already exists")
	ErrCouponInvalid   = Validation("Coupon is not valid")
	ErrCouponExhausted = Conflict("Coupon usage limit reached")
	ErrPaymentNotFound = NotFound("Payment not found")

	ErrSchoolNotFound     = NotFound("School not found")
	ErrSchoolAdminTaken   = Conflict("User already administers a school")
	ErrInstructorExists   = Conflict("Instructor already belongs to this school")
	ErrInstructorNotFound = NotFound("Instructor not found")
)
