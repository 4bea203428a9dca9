package utils

import (
	"fmt"
	"hash/fnv"

	"leadbaze/models"
)

// NormalizePhone strips everything that is not a digit. Leads whose phone
// normalizes to the empty string cannot be deduplicated or dispatched.
func NormalizePhone(raw string) string {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			out = append(out, raw[i])
		}
	}
	return string(out)
}

// PhoneHash returns a stable FNV-1a hash of the normalized phone number,
// hex-encoded. Same phone always yields the same hash; it doubles as the
// persistence-layer uniqueness key on campaign_unique_leads.
func PhoneHash(normalizedPhone string) string {
	h := fnv.New64a()
	h.Write([]byte(normalizedPhone))
	return fmt.Sprintf("%016x", h.Sum64())
}

// LeadDeduplicator accumulates leads unique by phone hash across lists.
// First-seen wins; later duplicates are dropped and counted. It is pure: all
// persistence is the caller's responsibility.
type LeadDeduplicator struct {
	seen  map[string]struct{}
	leads []models.CampaignUniqueLead
}

// NewLeadDeduplicator starts from an already-accumulated set, typically the
// campaign's persisted unique leads.
func NewLeadDeduplicator(existing []models.CampaignUniqueLead) *LeadDeduplicator {
	d := &LeadDeduplicator{
		seen:  make(map[string]struct{}, len(existing)),
		leads: make([]models.CampaignUniqueLead, 0, len(existing)),
	}
	for _, l := range existing {
		if _, ok := d.seen[l.PhoneHash]; ok {
			continue
		}
		d.seen[l.PhoneHash] = struct{}{}
		d.leads = append(d.leads, l)
	}
	return d
}

// Merge folds a batch of raw leads from one list into the accumulated set.
// It returns the leads actually added and the number of duplicates in this
// batch. Leads with an empty normalized phone are excluded entirely; they are
// invalid, not duplicates.
func (d *LeadDeduplicator) Merge(campaignID, leadListID uint, batch []models.Lead) (added []models.CampaignUniqueLead, duplicates int) {
	for _, lead := range batch {
		normalized := NormalizePhone(lead.Phone)
		if normalized == "" {
			continue
		}

		hash := PhoneHash(normalized)
		if _, ok := d.seen[hash]; ok {
			duplicates++
			continue
		}

		unique := models.CampaignUniqueLead{
			CampaignID: campaignID,
			LeadListID: leadListID,
			PhoneHash:  hash,
			Phone:      normalized,
			Name:       lead.Name,
			City:       lead.City,
			Company:    lead.Company,
		}
		d.seen[hash] = struct{}{}
		d.leads = append(d.leads, unique)
		added = append(added, unique)
	}
	return added, duplicates
}

// Leads returns the accumulated deduplicated set in first-seen order.
func (d *LeadDeduplicator) Leads() []models.CampaignUniqueLead {
	return d.leads
}

// Size returns the number of accumulated unique leads.
func (d *LeadDeduplicator) Size() int {
	return len(d.leads)
}
