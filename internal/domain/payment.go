package domain

import "time"

const DefaultCurrency = "USD"

type PaymentStatus string

const PaymentCompleted PaymentStatus = "COMPLETED"

// Payment is written once at confirmation and never modified.
type Payment struct {
	ID             string        `json:"paymentId"`
	UserID         string        `json:"userId"`
	CourseID       string        `json:"courseId"`
	CourseTitle    string        `json:"courseTitle"`
	Amount         float64       `json:"amount"`
	DiscountAmount float64       `json:"discountAmount"`
	FinalAmount    float64       `json:"finalAmount"`
	Currency       string        `json:"currency"`
	CouponCode     string        `json:"couponCode,omitempty"`
	PaymentMethod  string        `json:"paymentMethod"`
	TransactionID  string        `json:"transactionId"`
	Status         PaymentStatus `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
}

type School struct {
	ID          string    `json:"schoolId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	LogoURL     string    `json:"logoUrl,omitempty"`
	Website     string    `json:"website,omitempty"`
	AdminUserID string    `json:"adminUserId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type SchoolInstructor struct {
	SchoolID string    `json:"schoolId"`
	UserID   string    `json:"userId"`
	AddedBy  string    `json:"addedBy"`
	AddedAt  time.Time `json:"addedAt"`
}
