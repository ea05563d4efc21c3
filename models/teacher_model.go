package models

import (
	"time"

	"github.com/google/uuid"
)

// Connect account statuses for a teacher's payout account.
const (
	ConnectStatusNotConnected = "not_connected"
	ConnectStatusPending      = "pending"
	ConnectStatusConnected    = "connected"
	ConnectStatusRestricted   = "restricted"
	ConnectStatusDisconnected = "disconnected"
	ConnectStatusFailed       = "failed"
)

type Teacher struct {
	UserID         uuid.UUID `gorm:"primary_key" json:"user_id"`
	Headline       *string   `gorm:"size:255" json:"headline"`
	Bio            *string   `gorm:"type:text" json:"bio"`
	Status         string    `gorm:"size:20;not null;default:'pending'" json:"status"`
	CurrentBalance float64   `gorm:"type:numeric(10,2);default:0.00" json:"-"`

	// Connected payout account, populated and maintained exclusively by the
	// Stripe webhook pipeline once the account is created.
	StripeAccountID     *string    `gorm:"size:255;unique" json:"-"`
	ConnectStatus       string     `gorm:"size:20;not null;default:'not_connected'" json:"connect_status"`
	ConnectVerified     bool       `gorm:"default:false" json:"connect_verified"`
	OnboardingComplete  bool       `gorm:"default:false" json:"onboarding_complete"`
	OnboardingURL       *string    `gorm:"size:512" json:"-"`
	Requirements        StringList `gorm:"type:jsonb" json:"requirements"`
	Capabilities        StringMap  `gorm:"type:jsonb" json:"capabilities"`
	HealthScore         int        `gorm:"default:0" json:"health_score"`
	FailureReason       *string    `gorm:"type:text" json:"failure_reason,omitempty"`
	LastStatusUpdate    *time.Time `json:"last_status_update"`
	LastWebhookReceived *time.Time `json:"-"`
	ConnectRevision     int        `gorm:"not null;default:0" json:"-"`

	User User `gorm:"foreignkey:UserID" json:"user"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// ConnectAuditEntry is one row of a teacher's append-only connect audit trail.
// Rows are only ever inserted, never updated or deleted.
type ConnectAuditEntry struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TeacherID uuid.UUID `gorm:"not null;index" json:"teacher_id"`
	Action    string    `gorm:"size:100;not null" json:"action"`
	Details   JSONMap   `gorm:"type:jsonb" json:"details"`
	CreatedAt time.Time `json:"created_at"`
}
