package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"leadbaze/models"
)

type DashboardController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewDashboardController(db *gorm.DB, logger *log.Logger) *DashboardController {
	return &DashboardController{
		DB:     db,
		Logger: logger,
	}
}

// GetDashboardStats aggregates the user's extraction and dispatch totals
func (dc *DashboardController) GetDashboardStats(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var listCount, leadCount, campaignCount int64
	dc.DB.Model(&models.LeadList{}).Where("user_id = ?", user.ID).Count(&listCount)
	dc.DB.Model(&models.Lead{}).Where("user_id = ?", user.ID).Count(&leadCount)
	dc.DB.Model(&models.Campaign{}).Where("user_id = ?", user.ID).Count(&campaignCount)

	type statusCount struct {
		Status string
		Count  int64
	}
	var byStatus []statusCount
	dc.DB.Model(&models.Campaign{}).
		Select("status, count(*) as count").
		Where("user_id = ?", user.ID).
		Group("status").
		Scan(&byStatus)

	statuses := make(map[string]int64, len(byStatus))
	for _, s := range byStatus {
		statuses[s.Status] = s.Count
	}

	type totals struct {
		Success int64
		Failed  int64
	}
	var t totals
	dc.DB.Model(&models.Campaign{}).
		Select("coalesce(sum(success_count),0) as success, coalesce(sum(failed_count),0) as failed").
		Where("user_id = ?", user.ID).
		Scan(&t)

	return c.JSON(fiber.Map{
		"lead_lists":           listCount,
		"leads":                leadCount,
		"campaigns":            campaignCount,
		"campaigns_by_status":  statuses,
		"messages_sent":        t.Success,
		"messages_failed":      t.Failed,
	})
}

// GetRecentCampaigns returns the user's last campaigns with their counters
func (dc *DashboardController) GetRecentCampaigns(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	limit := c.QueryInt("limit", 5)
	if limit < 1 || limit > 20 {
		limit = 5
	}

	var campaigns []models.Campaign
	if err := dc.DB.Where("user_id = ?", user.ID).
		Order("created_at DESC").
		Limit(limit).
		Find(&campaigns).Error; err != nil {
		dc.Logger.Printf("Failed to fetch recent campaigns: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch recent campaigns",
		})
	}

	return c.JSON(fiber.Map{"campaigns": campaigns})
}
