package controller

import (
	"github.com/gofiber/fiber/v2"

	"leadbaze/models"
	"leadbaze/utils"
)

// StartTracking registers a campaign with the status tracker so that
// subsequent progress/completion events are accepted. Re-registration is
// tolerated: the dispatch engine may retry the call.
func (cc *CampaignController) StartTracking(c *fiber.Ctx) error {
	var input struct {
		CampaignID uint `json:"campaign_id" validate:"required"`
		TotalLeads int  `json:"total_leads" validate:"min=0"`
	}

	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var campaign models.Campaign
	if err := cc.DB.First(&campaign, input.CampaignID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	// Idempotent: only fill in the lead total when the campaign doesn't know
	// it yet, never touch a terminal campaign
	if !campaign.IsTerminal() && campaign.TotalLeads == 0 && input.TotalLeads > 0 {
		if err := cc.DB.Model(&campaign).Update("total_leads", input.TotalLeads).Error; err != nil {
			cc.Logger.Printf("Failed to register tracking for campaign %d: %v", campaign.ID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to register tracking",
			})
		}
	}

	return c.JSON(fiber.Map{"success": true})
}

// GetCampaignStatus is the point-in-time status fetch; the stream is only a
// hint, this endpoint is the reconciliation point.
func (cc *CampaignController) GetCampaignStatus(c *fiber.Ctx) error {
	campaignID := c.Params("id")

	var campaign models.Campaign
	if err := cc.DB.First(&campaign, campaignID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Campaign not found",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"campaign": fiber.Map{
			"id":            campaign.ID,
			"status":        campaign.Status,
			"success_count": campaign.SuccessCount,
			"failed_count":  campaign.FailedCount,
			"total_leads":   campaign.TotalLeads,
			"progress":      campaign.Progress,
			"sent_at":       campaign.SentAt,
			"completed_at":  campaign.CompletedAt,
			"updated_at":    campaign.UpdatedAt,
		},
	})
}
