package models

import (
	"time"

	"gorm.io/datatypes"
)

// TeamMembership links a user to a team with a team-scoped role and optional
// extra permission names stored as a JSON array.
type TeamMembership struct {
	TeamID      string         `gorm:"primaryKey;type:uuid" json:"team_id"`
	UserID      string         `gorm:"primaryKey;type:uuid;index" json:"user_id"`
	Role        string         `gorm:"size:64;not null" json:"role"`
	Permissions datatypes.JSON `json:"permissions,omitempty"`

	Team *Team `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE" json:"-"`
	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
