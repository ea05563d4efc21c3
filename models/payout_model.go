package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	PayoutStatusScheduled = "scheduled"
	PayoutStatusCompleted = "completed"
	PayoutStatusFailed    = "failed"
	PayoutStatusCancelled = "cancelled"
)

type Payout struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	StripePayoutID string    `gorm:"size:255;not null;unique" json:"-"`
	TeacherID      uuid.UUID `gorm:"not null;index" json:"teacher_id"`
	Amount         float64   `gorm:"type:numeric(10,2);not null" json:"amount"`
	Currency       string    `gorm:"size:3" json:"currency"`
	Status         string    `gorm:"size:20;not null;default:'scheduled'" json:"status"`

	FailureReason   *string `gorm:"type:text" json:"failure_reason,omitempty"`
	FailureCategory *string `gorm:"size:30" json:"failure_category,omitempty"`

	ExpectedArrival *time.Time `json:"expected_arrival,omitempty"`
	ActualArrival   *time.Time `json:"actual_arrival,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	// Seconds between payout creation and completion.
	ProcessingSeconds *float64 `json:"processing_seconds,omitempty"`

	Attempts []PayoutAttempt `gorm:"foreignkey:PayoutID" json:"attempts,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PayoutAttempt struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	PayoutID        uuid.UUID `gorm:"not null;index" json:"payout_id"`
	AttemptNumber   int       `gorm:"not null" json:"attempt_number"`
	AttemptedAt     time.Time `gorm:"not null" json:"attempted_at"`
	Status          string    `gorm:"size:20;not null" json:"status"`
	FailureReason   *string   `gorm:"type:text" json:"failure_reason,omitempty"`
	FailureCategory *string   `gorm:"size:30" json:"failure_category,omitempty"`
}

// PayoutAuditEntry is one row of a payout's append-only audit trail.
type PayoutAuditEntry struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	PayoutID  uuid.UUID `gorm:"not null;index" json:"payout_id"`
	Action    string    `gorm:"size:100;not null" json:"action"`
	Details   JSONMap   `gorm:"type:jsonb" json:"details"`
	CreatedAt time.Time `json:"created_at"`
}
