package models

import (
	"gorm.io/gorm"
)

// User is the account owning lead lists and campaigns. Credential handling and
// token issuance live in the auth service in front of this API; we only verify
// the JWT it signs.
type User struct {
	gorm.Model
	Email string `gorm:"uniqueIndex;not null" json:"email"`
	Name  string `json:"name"`

	IsActive     bool `gorm:"default:true" json:"is_active"`
	TokenVersion int  `gorm:"default:0" json:"-"`

	// Relations
	LeadLists []LeadList `gorm:"foreignKey:UserID" json:"lead_lists,omitempty"`
	Campaigns []Campaign `gorm:"foreignKey:UserID" json:"campaigns,omitempty"`
}
