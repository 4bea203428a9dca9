package models

import (
	"time"

	"gorm.io/gorm"
)

// WhatsAppInstance tracks a user's connection to the messaging gateway
type WhatsAppInstance struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	InstanceName string `gorm:"uniqueIndex;not null" json:"instance_name"`
	Status       string `gorm:"default:'disconnected'" json:"status"` // disconnected, connecting, connected
	PhoneNumber  string `json:"phone_number"`

	LastSeenAt *time.Time `json:"last_seen_at"`
}
