package models

// Permission is a catalog entry. Names are opaque dotted strings such as "content.publish".
type Permission struct {
	BaseModel

	Name        string `gorm:"uniqueIndex;size:128;not null" json:"name"`
	Description string `json:"description"`
	Category    string `gorm:"size:64;not null;index" json:"category"`
}
