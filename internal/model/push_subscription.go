package model

import "time"

// PushSubscription holds the information for a browser push subscription.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Events []EventSubscription `gorm:"foreignKey:Endpoint;constraint:OnDelete:CASCADE"`
}

// EventSubscription asks for a reminder when an event's attendance window opens.
type EventSubscription struct {
	Endpoint string `gorm:"primaryKey"`
	EventID  int64  `gorm:"primaryKey;index"`
}
