package controller

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"leadbaze/models"
	"leadbaze/utils"
)

type WhatsAppController struct {
	DB      *gorm.DB
	Logger  *log.Logger
	Gateway *utils.GatewayClient
}

func NewWhatsAppController(db *gorm.DB, logger *log.Logger, gateway *utils.GatewayClient) *WhatsAppController {
	return &WhatsAppController{
		DB:      db,
		Logger:  logger,
		Gateway: gateway,
	}
}

// CreateInstance registers a gateway instance for the user. One instance per
// user: reconnecting reuses the existing record.
func (wc *WhatsAppController) CreateInstance(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var instance models.WhatsAppInstance
	err := wc.DB.Where("user_id = ?", user.ID).First(&instance).Error
	if err == nil {
		return c.JSON(fiber.Map{
			"message":  "Instance already exists",
			"instance": instance,
		})
	}
	if err != gorm.ErrRecordNotFound {
		wc.Logger.Printf("Failed to look up instance for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to look up instance",
		})
	}

	instanceName := fmt.Sprintf("leadbaze-%d-%d", user.ID, time.Now().Unix())
	if _, err := wc.Gateway.CreateInstance(c.Context(), instanceName); err != nil {
		wc.Logger.Printf("Gateway instance creation failed for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to create gateway instance",
		})
	}

	instance = models.WhatsAppInstance{
		UserID:       user.ID,
		InstanceName: instanceName,
		Status:       "connecting",
	}
	if err := wc.DB.Create(&instance).Error; err != nil {
		wc.Logger.Printf("Failed to persist instance for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to persist instance",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Instance created",
		"instance": instance,
	})
}

// GetQRCode returns the current pairing QR for the user's instance
func (wc *WhatsAppController) GetQRCode(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var instance models.WhatsAppInstance
	if err := wc.DB.Where("user_id = ?", user.ID).First(&instance).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No instance found, create one first",
		})
	}

	qr, err := wc.Gateway.FetchQRCode(c.Context(), instance.InstanceName)
	if err != nil {
		wc.Logger.Printf("QR fetch failed for instance %s: %v", instance.InstanceName, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to fetch QR code",
		})
	}

	return c.JSON(fiber.Map{"qr_code": qr})
}

// GetConnectionState polls the gateway connection state and keeps the local
// record in sync.
func (wc *WhatsAppController) GetConnectionState(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var instance models.WhatsAppInstance
	if err := wc.DB.Where("user_id = ?", user.ID).First(&instance).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No instance found, create one first",
		})
	}

	state, err := wc.Gateway.ConnectionState(c.Context(), instance.InstanceName)
	if err != nil {
		wc.Logger.Printf("State check failed for instance %s: %v", instance.InstanceName, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to check connection state",
		})
	}

	status := "disconnected"
	switch state {
	case "open":
		status = "connected"
	case "connecting":
		status = "connecting"
	}

	if status != instance.Status {
		updates := map[string]interface{}{"status": status}
		if status == "connected" {
			updates["last_seen_at"] = time.Now()
		}
		if err := wc.DB.Model(&instance).Updates(updates).Error; err != nil {
			wc.Logger.Printf("Failed to update instance %s status: %v", instance.InstanceName, err)
		}
	}

	return c.JSON(fiber.Map{
		"instance_name": instance.InstanceName,
		"state":         state,
		"status":        status,
	})
}
