package model

import "time"

// Reminder records that subscribers were told an event's window opened.
type Reminder struct {
	EventID int64     `gorm:"primaryKey;autoIncrement:false"`
	Title   string    `gorm:"size:256;not null"`
	SentAt  time.Time `gorm:"not null"`
}
