package model

import (
	"time"

	"gorm.io/datatypes"
)

// Session is a signed-in viewer's persisted credential. The browser only
// carries the ID; the bearer token never leaves the server.
type Session struct {
	ID        string         `gorm:"primaryKey;size:36"`
	Token     string         `gorm:"not null"`
	Username  string         `gorm:"size:128;index;not null"`
	User      datatypes.JSON `gorm:"not null"`
	ExpiresAt time.Time      `gorm:"index;not null"`
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}
