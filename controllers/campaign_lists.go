package controller

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"leadbaze/models"
	"leadbaze/utils"
)

// BulkOperationResult is the outcome of a bulk list add/remove. Validation and
// persistence failures are returned in-band, never thrown past the handler.
type BulkOperationResult struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Data    *BulkOperationData `json:"data,omitempty"`
}

type BulkOperationData struct {
	SelectedLists     []uint                      `json:"selected_lists"`
	IgnoredLists      []uint                      `json:"ignored_lists"`
	Leads             []models.CampaignUniqueLead `json:"leads"`
	DuplicatesRemoved int                         `json:"duplicates_removed"`
}

// AddAllLists merges every available lead list of the user into the campaign,
// deduplicating by phone hash across all of them.
func (cc *CampaignController) AddAllLists(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := utils.ParseUint(c.Params("id"))

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", campaignID, user.ID).First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}
	if campaign.Status != models.CampaignStatusDraft {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Lists can only be changed while the campaign is a draft",
		})
	}

	var availableLists []models.LeadList
	if err := cc.DB.Preload("Leads").Where("user_id = ?", user.ID).Find(&availableLists).Error; err != nil {
		cc.Logger.Printf("Failed to fetch lead lists: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch lead lists",
		})
	}

	selected, ignored, err := cc.campaignListIDs(campaign.ID)
	if err != nil {
		cc.Logger.Printf("Failed to fetch campaign lists: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch campaign lists",
		})
	}

	var currentLeads []models.CampaignUniqueLead
	if err := cc.DB.Where("campaign_id = ?", campaign.ID).Order("id ASC").Find(&currentLeads).Error; err != nil {
		cc.Logger.Printf("Failed to fetch campaign leads: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch campaign leads",
		})
	}

	result := cc.addAllListsToCampaign(campaign.ID, availableLists, selected, ignored, currentLeads)
	if !result.Success {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(result)
	}
	return c.JSON(result)
}

// RemoveAllLists clears every list association and the unique-lead set
func (cc *CampaignController) RemoveAllLists(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := utils.ParseUint(c.Params("id"))

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", campaignID, user.ID).First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}
	if campaign.Status != models.CampaignStatusDraft {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Lists can only be changed while the campaign is a draft",
		})
	}

	_, ignored, err := cc.campaignListIDs(campaign.ID)
	if err != nil {
		cc.Logger.Printf("Failed to fetch campaign lists: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch campaign lists",
		})
	}

	result := cc.removeAllListsFromCampaign(campaign.ID, ignored)
	if !result.Success {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(result)
	}
	return c.JSON(result)
}

// addAllListsToCampaign computes the union of the current selection and all
// available lists, runs the deduplicator over every list and replaces the
// persisted associations. All three persistence steps run in one transaction
// so a failure partway through cannot leave the counters lying.
func (cc *CampaignController) addAllListsToCampaign(
	campaignID uint,
	availableLists []models.LeadList,
	currentSelected, currentIgnored []uint,
	currentLeads []models.CampaignUniqueLead,
) BulkOperationResult {
	if campaignID == 0 {
		return BulkOperationResult{Success: false, Message: "campaign id is required"}
	}

	if len(availableLists) == 0 {
		// Nothing to merge: succeed as a no-op with the unchanged state
		return BulkOperationResult{
			Success: true,
			Message: "No available lists to add",
			Data: &BulkOperationData{
				SelectedLists: currentSelected,
				IgnoredLists:  currentIgnored,
				Leads:         currentLeads,
			},
		}
	}

	// Ignored lists stay ignored: they never join the selection and their
	// leads are not merged
	ignoredSet := make(map[uint]struct{}, len(currentIgnored))
	for _, id := range currentIgnored {
		ignoredSet[id] = struct{}{}
	}

	// Union of the current selection and every available non-ignored list id
	selectedSet := make(map[uint]struct{}, len(currentSelected)+len(availableLists))
	selected := make([]uint, 0, len(currentSelected)+len(availableLists))
	for _, id := range currentSelected {
		if _, ok := selectedSet[id]; ok {
			continue
		}
		selectedSet[id] = struct{}{}
		selected = append(selected, id)
	}
	for _, list := range availableLists {
		if _, ok := ignoredSet[list.ID]; ok {
			continue
		}
		if _, ok := selectedSet[list.ID]; ok {
			continue
		}
		selectedSet[list.ID] = struct{}{}
		selected = append(selected, list.ID)
	}

	// Fold every selected list into the accumulated set, summing duplicates
	// per batch
	dedup := utils.NewLeadDeduplicator(currentLeads)
	totalDuplicates := 0
	for _, list := range availableLists {
		if _, ok := ignoredSet[list.ID]; ok {
			continue
		}
		_, duplicates := dedup.Merge(campaignID, list.ID, list.Leads)
		totalDuplicates += duplicates
	}
	leads := dedup.Leads()

	var uniqueCount int64
	err := cc.DB.Transaction(func(tx *gorm.DB) error {
		// Replace all associations for this campaign: hard delete then insert,
		// a soft-deleted row would still occupy the composite unique index
		if err := tx.Unscoped().Where("campaign_id = ?", campaignID).Delete(&models.CampaignList{}).Error; err != nil {
			return err
		}
		associations := make([]models.CampaignList, 0, len(selected)+len(currentIgnored))
		for _, listID := range selected {
			associations = append(associations, models.CampaignList{CampaignID: campaignID, LeadListID: listID})
		}
		for _, listID := range currentIgnored {
			associations = append(associations, models.CampaignList{CampaignID: campaignID, LeadListID: listID, Ignored: true})
		}
		if len(associations) > 0 {
			if err := tx.CreateInBatches(associations, 200).Error; err != nil {
				return err
			}
		}

		// Upsert the unique-lead rows; the composite index makes re-adding a
		// list a no-op
		if len(leads) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "phone_hash"}},
				DoNothing: true,
			}).CreateInBatches(leads, 500).Error; err != nil {
				return err
			}
		}

		// Counters always reflect the actual row count, never a running total
		if err := tx.Model(&models.CampaignUniqueLead{}).
			Where("campaign_id = ?", campaignID).
			Count(&uniqueCount).Error; err != nil {
			return err
		}

		return tx.Model(&models.Campaign{}).Where("id = ?", campaignID).Updates(map[string]interface{}{
			"selected_lists_count": len(selected),
			"ignored_lists_count":  len(currentIgnored),
			"total_leads":          uniqueCount,
			"unique_leads":         uniqueCount,
			"duplicates_count":     gorm.Expr("duplicates_count + ?", totalDuplicates),
		}).Error
	})
	if err != nil {
		cc.Logger.Printf("Bulk list add failed for campaign %d: %v", campaignID, err)
		return BulkOperationResult{
			Success: false,
			Message: fmt.Sprintf("Failed to add lists: %v", err),
		}
	}

	return BulkOperationResult{
		Success: true,
		Message: fmt.Sprintf("Added %d lists with %d unique leads (%d duplicates removed)", len(selected), uniqueCount, totalDuplicates),
		Data: &BulkOperationData{
			SelectedLists:     selected,
			IgnoredLists:      currentIgnored,
			Leads:             leads,
			DuplicatesRemoved: totalDuplicates,
		},
	}
}

// removeAllListsFromCampaign clears the selection, keeps the ignored record
// and zeroes every lead counter.
func (cc *CampaignController) removeAllListsFromCampaign(campaignID uint, currentIgnored []uint) BulkOperationResult {
	if campaignID == 0 {
		return BulkOperationResult{Success: false, Message: "campaign id is required"}
	}

	err := cc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("campaign_id = ?", campaignID).Delete(&models.CampaignList{}).Error; err != nil {
			return err
		}
		for _, listID := range currentIgnored {
			if err := tx.Create(&models.CampaignList{CampaignID: campaignID, LeadListID: listID, Ignored: true}).Error; err != nil {
				return err
			}
		}

		// Hard delete so re-adding a list later can reinsert the same
		// (campaign_id, phone_hash) rows
		if err := tx.Unscoped().Where("campaign_id = ?", campaignID).Delete(&models.CampaignUniqueLead{}).Error; err != nil {
			return err
		}

		return tx.Model(&models.Campaign{}).Where("id = ?", campaignID).Updates(map[string]interface{}{
			"selected_lists_count": 0,
			"ignored_lists_count":  len(currentIgnored),
			"total_leads":          0,
			"unique_leads":         0,
			"duplicates_count":     0,
		}).Error
	})
	if err != nil {
		cc.Logger.Printf("Bulk list removal failed for campaign %d: %v", campaignID, err)
		return BulkOperationResult{
			Success: false,
			Message: fmt.Sprintf("Failed to remove lists: %v", err),
		}
	}

	return BulkOperationResult{
		Success: true,
		Message: "All lists removed from campaign",
		Data: &BulkOperationData{
			SelectedLists: []uint{},
			IgnoredLists:  currentIgnored,
			Leads:         []models.CampaignUniqueLead{},
		},
	}
}

// campaignListIDs splits the campaign's list associations into selected and
// ignored id sets.
func (cc *CampaignController) campaignListIDs(campaignID uint) (selected, ignored []uint, err error) {
	var associations []models.CampaignList
	if err := cc.DB.Where("campaign_id = ?", campaignID).Find(&associations).Error; err != nil {
		return nil, nil, err
	}
	for _, a := range associations {
		if a.Ignored {
			ignored = append(ignored, a.LeadListID)
		} else {
			selected = append(selected, a.LeadListID)
		}
	}
	return selected, ignored, nil
}
