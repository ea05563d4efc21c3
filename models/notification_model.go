package models

import (
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID   uuid.UUID `gorm:"not null;index" json:"user_id"`
	UserType string    `gorm:"size:20" json:"user_type"`
	Type     string    `gorm:"size:50;not null" json:"type"`
	Priority string    `gorm:"size:20;not null;default:'normal'" json:"priority"`
	Title    string    `gorm:"size:255;not null" json:"title"`
	Body     string    `gorm:"type:text" json:"body"`

	RelatedResourceType *string `gorm:"size:50" json:"related_resource_type,omitempty"`
	RelatedResourceID   *string `gorm:"size:255" json:"related_resource_id,omitempty"`
	Metadata            JSONMap `gorm:"type:jsonb" json:"metadata"`
	Read                bool    `gorm:"default:false" json:"read"`

	CreatedAt time.Time `json:"created_at"`
}
