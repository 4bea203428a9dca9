package models

import (
	"time"

	"gorm.io/gorm"
)

// Campaign statuses
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusSending   = "sending"
	CampaignStatusCompleted = "completed"
	CampaignStatusFailed    = "failed"
)

// Campaign represents a WhatsApp dispatch unit over a deduplicated lead set
type Campaign struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name    string `gorm:"not null" json:"name"`
	Message string `gorm:"type:text" json:"message"`

	// draft -> sending -> completed | failed; completed and failed are terminal
	Status string `gorm:"default:'draft';index" json:"status"`

	// Scheduling
	ScheduledAt *time.Time `json:"scheduled_at"`
	SentAt      *time.Time `json:"sent_at"`
	CompletedAt *time.Time `json:"completed_at"`

	// List selection counters
	SelectedListsCount int `gorm:"default:0" json:"selected_lists_count"`
	IgnoredListsCount  int `gorm:"default:0" json:"ignored_lists_count"`

	// Lead counters (recomputed from campaign_unique_leads, never trusted incrementally)
	TotalLeads      int `gorm:"default:0" json:"total_leads"`
	UniqueLeads     int `gorm:"default:0" json:"unique_leads"`
	DuplicatesCount int `gorm:"default:0" json:"duplicates_count"`

	// Dispatch counters
	SuccessCount int     `gorm:"default:0" json:"success_count"`
	FailedCount  int     `gorm:"default:0" json:"failed_count"`
	Progress     float64 `gorm:"default:0" json:"progress"`

	// Relations
	Lists      []CampaignList       `gorm:"foreignKey:CampaignID" json:"lists,omitempty"`
	Recipients []CampaignUniqueLead `gorm:"foreignKey:CampaignID" json:"-"`
}

// IsTerminal reports whether the campaign can no longer accept dispatch events
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignStatusCompleted || c.Status == CampaignStatusFailed
}

// CampaignList joins a campaign to a lead list, selected or ignored
type CampaignList struct {
	gorm.Model
	CampaignID uint `gorm:"not null;index;uniqueIndex:idx_campaign_list" json:"campaign_id"`
	LeadListID uint `gorm:"not null;index;uniqueIndex:idx_campaign_list" json:"lead_list_id"`
	Ignored    bool `gorm:"default:false" json:"ignored"`
}

// CampaignUniqueLead is one deduplicated recipient of a campaign.
// The composite unique index gives the upsert-on-conflict semantics: re-adding
// a list never duplicates a recipient.
type CampaignUniqueLead struct {
	gorm.Model
	CampaignID uint   `gorm:"not null;index;uniqueIndex:idx_campaign_phone_hash" json:"campaign_id"`
	PhoneHash  string `gorm:"not null;uniqueIndex:idx_campaign_phone_hash" json:"phone_hash"`

	LeadListID uint   `gorm:"index" json:"lead_list_id"`
	Phone      string `gorm:"not null" json:"phone"`
	Name       string `json:"name"`
	City       string `json:"city"`
	Company    string `json:"company"`
}

// CampaignProgress is the per-event snapshot streamed to connected clients.
// Not persisted as history; the campaign row carries the latest counters.
type CampaignProgress struct {
	CampaignID   uint    `json:"campaign_id"`
	LeadIndex    int     `json:"lead_index"`
	TotalLeads   int     `json:"total_leads"`
	SuccessCount int     `json:"success_count"`
	FailedCount  int     `json:"failed_count"`
	Percent      float64 `json:"percent"`
	LeadPhone    string  `json:"lead_phone"`
	LeadName     string  `json:"lead_name"`
	Outcome      string  `json:"outcome"` // sent, failed
}

// CampaignCompletion is the terminal event closing out a dispatch run
type CampaignCompletion struct {
	CampaignID   uint      `json:"campaign_id"`
	Status       string    `json:"status"` // completed, failed
	SuccessCount int       `json:"success_count"`
	FailedCount  int       `json:"failed_count"`
	TotalLeads   int       `json:"total_leads"`
	CompletedAt  time.Time `json:"completed_at"`
}
