package controller

import (
	"log"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"leadbaze/models"
	"leadbaze/utils"
)

type LeadController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewLeadController(db *gorm.DB, logger *log.Logger) *LeadController {
	return &LeadController{
		DB:     db,
		Logger: logger,
	}
}

func (lc *LeadController) CreateLeadList(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		Name        string `json:"name" validate:"required,min=1,max=200"`
		Description string `json:"description"`
		Source      string `json:"source"`
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

	list := models.LeadList{
		UserID:      user.ID,
		Name:        input.Name,
		Description: input.Description,
		Source:      input.Source,
	}
	if list.Source == "" {
		list.Source = "manual"
	}

	if err := lc.DB.Create(&list).Error; err != nil {
		lc.Logger.Printf("Failed to create lead list: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create lead list",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":   "Lead list created successfully",
		"lead_list": list,
	})
}

func (lc *LeadController) GetLeadLists(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var lists []models.LeadList
	if err := lc.DB.Where("user_id = ?", user.ID).Order("created_at DESC").Find(&lists).Error; err != nil {
		lc.Logger.Printf("Failed to fetch lead lists: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch lead lists",
		})
	}

	return c.JSON(fiber.Map{"lead_lists": lists})
}

func (lc *LeadController) GetLeadList(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	listID := c.Params("id")

	var list models.LeadList
	if err := lc.DB.Where("id = ? AND user_id = ?", listID, user.ID).First(&list).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Lead list not found",
		})
	}

	return c.JSON(fiber.Map{"lead_list": list})
}

func (lc *LeadController) DeleteLeadList(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	listID := c.Params("id")

	var list models.LeadList
	if err := lc.DB.Where("id = ? AND user_id = ?", listID, user.ID).First(&list).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Lead list not found",
		})
	}

	err := lc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("lead_list_id = ?", list.ID).Delete(&models.Lead{}).Error; err != nil {
			return err
		}
		return tx.Delete(&list).Error
	})
	if err != nil {
		lc.Logger.Printf("Failed to delete lead list %d: %v", list.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete lead list",
		})
	}

	return c.JSON(fiber.Map{"message": "Lead list deleted successfully"})
}

// ImportLeads takes a batch of extraction results into a list. Phones are
// normalized and hashed on the way in; leads without any digits in the phone
// are rejected per-row, not per-batch.
func (lc *LeadController) ImportLeads(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	listID := utils.ParseUint(c.Params("id"))

	var list models.LeadList
	if err := lc.DB.Where("id = ? AND user_id = ?", listID, user.ID).First(&list).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Lead list not found",
		})
	}

	var input struct {
		Leads []struct {
			Name         string  `json:"name"`
			Address      string  `json:"address"`
			City         string  `json:"city"`
			Phone        string  `json:"phone"`
			Email        string  `json:"email"`
			Company      string  `json:"company"`
			Position     string  `json:"position"`
			Website      string  `json:"website"`
			Rating       float64 `json:"rating"`
			ReviewsCount int     `json:"reviews_count"`
		} `json:"leads" validate:"required,min=1"`
		Source string `json:"source"`
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

	source := input.Source
	if source == "" {
		source = "maps_extraction"
	}

	imported := make([]models.Lead, 0, len(input.Leads))
	skipped := 0
	for _, raw := range input.Leads {
		normalized := utils.NormalizePhone(raw.Phone)
		if raw.Name == "" || normalized == "" {
			skipped++
			continue
		}

		email := raw.Email
		if email != "" {
			if err := checkmail.ValidateFormat(email); err != nil {
				// Extraction sources frequently scrape garbage into the email
				// field; keep the lead, drop the email
				email = ""
			}
		}

		imported = append(imported, models.Lead{
			LeadListID:      list.ID,
			UserID:          user.ID,
			Name:            raw.Name,
			Address:         raw.Address,
			City:            raw.City,
			Phone:           raw.Phone,
			NormalizedPhone: normalized,
			PhoneHash:       utils.PhoneHash(normalized),
			Email:           email,
			Company:         raw.Company,
			Position:        raw.Position,
			Website:         raw.Website,
			Rating:          raw.Rating,
			ReviewsCount:    raw.ReviewsCount,
			Source:          source,
		})
	}

	if len(imported) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "No importable leads in batch",
			"skipped": skipped,
		})
	}

	err := lc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(imported, 500).Error; err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.Lead{}).Where("lead_list_id = ?", list.ID).Count(&count).Error; err != nil {
			return err
		}
		return tx.Model(&list).Update("lead_count", count).Error
	})
	if err != nil {
		lc.Logger.Printf("Failed to import leads into list %d: %v", list.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to import leads",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Leads imported successfully",
		"imported": len(imported),
		"skipped":  skipped,
	})
}

func (lc *LeadController) GetLeadListLeads(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	listID := c.Params("id")

	var list models.LeadList
	if err := lc.DB.Where("id = ? AND user_id = ?", listID, user.ID).First(&list).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Lead list not found",
		})
	}

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 50)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}

	var leads []models.Lead
	var total int64
	lc.DB.Model(&models.Lead{}).Where("lead_list_id = ?", list.ID).Count(&total)
	if err := lc.DB.Where("lead_list_id = ?", list.ID).
		Order("id ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&leads).Error; err != nil {
		lc.Logger.Printf("Failed to fetch leads for list %d: %v", list.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch leads",
		})
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  leads,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}
