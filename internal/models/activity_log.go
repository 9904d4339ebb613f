package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActivityLog is an append-only record of a user action.
type ActivityLog struct {
	ID           string         `gorm:"primaryKey;type:uuid" json:"id"`
	UserID       string         `gorm:"type:uuid;index" json:"user_id"`
	Action       string         `gorm:"size:128;not null;index" json:"action"`
	ResourceType string         `gorm:"size:64;index" json:"resource_type"`
	ResourceID   string         `gorm:"size:128" json:"resource_id"`
	Details      datatypes.JSON `json:"details,omitempty"`
	IPAddress    string         `gorm:"size:64" json:"ip_address"`
	UserAgent    string         `json:"user_agent"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
}

func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
