package models

import "time"

// RolePermission grants a permission to every user holding Role.
type RolePermission struct {
	Role         string      `gorm:"primaryKey;size:64" json:"role"`
	PermissionID string      `gorm:"primaryKey;type:uuid" json:"permission_id"`
	Permission   *Permission `gorm:"foreignKey:PermissionID;constraint:OnDelete:CASCADE" json:"permission,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}
