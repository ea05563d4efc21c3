package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEvent is the processed-event ledger. The unique constraint on the
// Stripe event id is what collapses duplicate deliveries: an event is only
// processed when its ledger row inserts cleanly.
type WebhookEvent struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	StripeEventID   string    `gorm:"size:255;not null;unique" json:"stripe_event_id"`
	EventType       string    `gorm:"size:100;not null" json:"event_type"`
	StripeAccountID *string   `gorm:"size:255" json:"stripe_account_id,omitempty"`
	ReceivedAt      time.Time `gorm:"not null" json:"received_at"`
}
