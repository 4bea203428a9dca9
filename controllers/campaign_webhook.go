package controller

import (
	"encoding/json"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"leadbaze/models"
	"leadbaze/stream"
)

// HandleDispatchWebhook is the ingestion point for the workflow engine's
// asynchronous callbacks. Payloads are a tagged union: type selects the data
// shape and unknown types are rejected rather than guessed at.
func (cc *CampaignController) HandleDispatchWebhook(c *fiber.Ctx) error {
	var input struct {
		CampaignID uint            `json:"campaign_id"`
		Type       string          `json:"type"` // progress, complete
		Data       json.RawMessage `json:"data"`
	}

	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if input.CampaignID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "campaign_id is required",
		})
	}

	var campaign models.Campaign
	if err := cc.DB.First(&campaign, input.CampaignID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	// Terminal campaigns are never resurrected: late events are anomalies,
	// acknowledged so the engine stops retrying, but not applied
	if campaign.IsTerminal() || campaign.Status != models.CampaignStatusSending {
		cc.reportAnomaly(&campaign, input.Type)
		return c.JSON(fiber.Map{"success": true, "ignored": true})
	}

	switch input.Type {
	case "progress":
		var progress models.CampaignProgress
		if err := json.Unmarshal(input.Data, &progress); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid progress payload",
			})
		}
		return cc.applyProgress(c, &campaign, &progress)

	case "complete":
		var completion models.CampaignCompletion
		if err := json.Unmarshal(input.Data, &completion); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid completion payload",
			})
		}
		return cc.applyCompletion(c, &campaign, &completion)

	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown event type: " + input.Type,
		})
	}
}

func (cc *CampaignController) applyProgress(c *fiber.Ctx, campaign *models.Campaign, progress *models.CampaignProgress) error {
	progress.CampaignID = campaign.ID
	if progress.TotalLeads == 0 {
		progress.TotalLeads = campaign.TotalLeads
	}
	if progress.Percent == 0 && progress.TotalLeads > 0 {
		progress.Percent = float64(progress.LeadIndex) / float64(progress.TotalLeads) * 100
	}

	if err := cc.DB.Model(campaign).Updates(map[string]interface{}{
		"success_count": progress.SuccessCount,
		"failed_count":  progress.FailedCount,
		"progress":      progress.Percent,
	}).Error; err != nil {
		cc.Logger.Printf("Failed to persist progress for campaign %d: %v", campaign.ID, err)
		sentry.CaptureException(err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to persist progress",
		})
	}

	cc.Broker.Publish(stream.Event{
		Type:       stream.EventProgress,
		CampaignID: campaign.ID,
		Data:       progress,
	})

	return c.JSON(fiber.Map{"success": true})
}

func (cc *CampaignController) applyCompletion(c *fiber.Ctx, campaign *models.Campaign, completion *models.CampaignCompletion) error {
	completion.CampaignID = campaign.ID
	if completion.Status != models.CampaignStatusCompleted && completion.Status != models.CampaignStatusFailed {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Completion status must be completed or failed",
		})
	}
	if completion.CompletedAt.IsZero() {
		completion.CompletedAt = time.Now()
	}
	if completion.TotalLeads == 0 {
		completion.TotalLeads = campaign.TotalLeads
	}

	if err := cc.DB.Model(campaign).Updates(map[string]interface{}{
		"status":        completion.Status,
		"success_count": completion.SuccessCount,
		"failed_count":  completion.FailedCount,
		"progress":      100,
		"completed_at":  completion.CompletedAt,
	}).Error; err != nil {
		cc.Logger.Printf("Failed to persist completion for campaign %d: %v", campaign.ID, err)
		sentry.CaptureException(err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to persist completion",
		})
	}

	cc.Broker.Publish(stream.Event{
		Type:       stream.EventComplete,
		CampaignID: campaign.ID,
		Data:       completion,
	})

	return c.JSON(fiber.Map{"success": true})
}

// reportAnomaly records an event that arrived for a campaign that cannot
// accept it (terminal, or never started sending).
func (cc *CampaignController) reportAnomaly(campaign *models.Campaign, eventType string) {
	log := logrus.WithFields(logrus.Fields{
		"campaign_id": campaign.ID,
		"status":      campaign.Status,
		"event_type":  eventType,
	})
	log.Warn("Dropping dispatch event for campaign outside sending state")

	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category: "dispatch-webhook",
		Message:  "event for campaign outside sending state",
		Level:    sentry.LevelWarning,
		Data: map[string]interface{}{
			"campaign_id": campaign.ID,
			"status":      campaign.Status,
			"event_type":  eventType,
		},
	})
}
