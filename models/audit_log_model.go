package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog is the platform-wide audit sink. The webhook pipeline only ever
// appends to this table; entries are immutable once written.
type AuditLog struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Action       string     `gorm:"size:100;not null;index" json:"action"`
	Category     string     `gorm:"size:50" json:"category"`
	Level        string     `gorm:"size:20" json:"level"`
	Message      string     `gorm:"type:text" json:"message"`
	UserID       *uuid.UUID `gorm:"index" json:"user_id,omitempty"`
	ResourceType string     `gorm:"size:50" json:"resource_type"`
	ResourceID   string     `gorm:"size:255" json:"resource_id"`
	Metadata     JSONMap    `gorm:"type:jsonb" json:"metadata"`
	CreatedAt    time.Time  `json:"created_at"`
}
