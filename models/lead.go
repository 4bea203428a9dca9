package models

import (
	"time"

	"gorm.io/gorm"
)

// LeadList represents a list of leads produced by an extraction run
type LeadList struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Source      string `json:"source"` // maps_extraction, csv, manual, api

	// Statistics
	LeadCount int `gorm:"default:0" json:"lead_count"`

	// Relations
	Leads []Lead `gorm:"foreignKey:LeadListID" json:"leads,omitempty"`
}

// Lead represents a single extracted contact
type Lead struct {
	gorm.Model
	// Foreign key to LeadList - every lead belongs to the list it was extracted into
	LeadListID uint `gorm:"not null;index" json:"lead_list_id"`
	UserID     uint `gorm:"index" json:"user_id"`

	Name    string `gorm:"not null" json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`

	// Phone as extracted, plus the normalized digits and the stable dedup hash
	Phone           string `gorm:"not null" json:"phone"`
	NormalizedPhone string `gorm:"index" json:"normalized_phone"`
	PhoneHash       string `gorm:"index" json:"phone_hash"`

	Email    string `json:"email"`
	Company  string `json:"company"`
	Position string `json:"position"`
	Website  string `json:"website"`

	// Extraction metadata
	Rating       float64 `json:"rating"`
	ReviewsCount int     `json:"reviews_count"`
	Source       string  `json:"source"`

	LastContact *time.Time `json:"last_contact"`

	// Relations
	LeadList LeadList `gorm:"foreignKey:LeadListID" json:"-"`
}
