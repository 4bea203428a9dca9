package controller

import (
	"github.com/gofiber/fiber/v2"

	"leadbaze/models"
)

// StartCampaign hands the campaign to the workflow engine and transitions it
// to sending. Progress comes back asynchronously through the dispatch webhook.
func (cc *CampaignController) StartCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := c.Params("id")

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", campaignID, user.ID).First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	if campaign.Status == models.CampaignStatusSending {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Campaign is already running",
		})
	}
	if campaign.IsTerminal() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Campaign has already finished",
		})
	}
	if campaign.UniqueLeads == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Campaign has no leads to send to",
		})
	}

	if err := cc.Dispatcher.DispatchCampaign(c.Context(), &campaign); err != nil {
		cc.Logger.Printf("Failed to dispatch campaign %d: %v", campaign.ID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "Failed to hand campaign to the dispatch engine",
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message":  "Campaign dispatch started",
		"campaign": campaign,
	})
}
