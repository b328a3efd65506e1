package task

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrDuplicateApplication возвращается, когда пользователь уже откликался на задачу
var ErrDuplicateApplication = errors.New("заявка на эту задачу уже подана")

type Application struct {
	UUID             uuid.UUID         `json:"id" db:"uuid"`
	TaskID           uuid.UUID         `json:"task_id" db:"task_id"`
	ApplicantID      string            `json:"applicant_id" db:"applicant_id"`
	Message          string            `json:"message" db:"message"`
	BidAmount        decimal.Decimal   `json:"bid_amount" db:"bid_amount"`
	Status           ApplicationStatus `json:"status" db:"status"`
	DeliveryStatus   DeliveryStatus    `json:"delivery_status" db:"delivery_status"`
	DeliveryContent  string            `json:"delivery_content,omitempty" db:"delivery_content"`
	DeliveryFeedback string            `json:"delivery_feedback,omitempty" db:"delivery_feedback"`
	Rating           *int              `json:"rating,omitempty" db:"rating"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt        *time.Time        `json:"updated_at,omitempty" db:"updated_at,omitempty"`
	Version          int               `json:"version" db:"version"`
}

type ApplicationStatus string
type DeliveryStatus string

const ApplicationPending ApplicationStatus = "pending"
const ApplicationAccepted ApplicationStatus = "accepted"
const ApplicationRejected ApplicationStatus = "rejected"

const DeliveryNone DeliveryStatus = "none"
const DeliverySubmitted DeliveryStatus = "submitted"
const DeliveryApproved DeliveryStatus = "approved"
const DeliveryChangesRequested DeliveryStatus = "changes_requested"

const MinRating = 1
const MaxRating = 5
const DefaultRating = 5

func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationPending, ApplicationAccepted, ApplicationRejected:
		return true
	}
	return false
}

// IsReviewDecision: только эти два значения допустимы при проверке сдачи
func (d DeliveryStatus) IsReviewDecision() bool {
	return d == DeliveryApproved || d == DeliveryChangesRequested
}

func (a *Application) Clone() *Application {
	c := *a
	if a.Rating != nil {
		r := *a.Rating
		c.Rating = &r
	}
	if a.UpdatedAt != nil {
		u := *a.UpdatedAt
		c.UpdatedAt = &u
	}
	return &c
}

// RatingSummary агрегирует оценки, полученные исполнителем
type RatingSummary struct {
	UserID  string  `json:"user_id"`
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

func NewRatingSummary(userID string, count, sum int) RatingSummary {
	summary := RatingSummary{UserID: userID, Count: count}
	if count > 0 {
		summary.Average = float64(sum) / float64(count)
	}
	return summary
}
