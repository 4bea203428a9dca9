package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"

	controller "leadbaze/controllers"
	"leadbaze/middleware"
	"leadbaze/stream"
	"leadbaze/utils"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, broker *stream.Broker, dispatcher *utils.Dispatcher, gateway *utils.GatewayClient) {
	// Initialize controllers with their respective loggers
	campaignController := controller.NewCampaignController(db, log.New(os.Stdout, "CAMPAIGN: ", log.LstdFlags), broker, dispatcher)
	leadController := controller.NewLeadController(db, log.New(os.Stdout, "LEAD: ", log.LstdFlags))
	dashboardController := controller.NewDashboardController(db, log.New(os.Stdout, "DASHBOARD: ", log.LstdFlags))
	whatsappController := controller.NewWhatsAppController(db, log.New(os.Stdout, "WHATSAPP: ", log.LstdFlags), gateway)

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Dispatch engine callbacks: authenticated by shared secret, not JWT
	webhook := app.Group("/webhook", middleware.WebhookAuth(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	webhook.Post("/dispatch", campaignController.HandleDispatchWebhook)

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Dashboard routes
	dashboard := api.Group("/dashboard")
	dashboard.Get("/stats", dashboardController.GetDashboardStats)
	dashboard.Get("/recent-campaigns", dashboardController.GetRecentCampaigns)

	// Campaign routes
	campaign := api.Group("/campaigns")
	campaign.Post("/", campaignController.CreateCampaign)
	campaign.Get("/", campaignController.GetCampaigns)
	campaign.Get("/:id", campaignController.GetCampaign)
	campaign.Delete("/:id", campaignController.DeleteCampaign)
	campaign.Get("/:id/stats", campaignController.GetCampaignStats)
	campaign.Post("/:id/start", middleware.DispatchRateLimiter(), campaignController.StartCampaign)
	campaign.Post("/:id/lists/add-all", campaignController.AddAllLists)
	campaign.Post("/:id/lists/remove-all", campaignController.RemoveAllLists)

	// Campaign status tracking
	status := api.Group("/campaign-status")
	status.Post("/start", campaignController.StartTracking)
	status.Get("/stream/:id", campaignController.StreamCampaignStatus)
	status.Get("/:id", campaignController.GetCampaignStatus)

	// WebSocket mirror of the status stream
	api.Get("/campaigns/:id/progress/ws", websocket.New(func(c *websocket.Conn) {
		campaignController.HandleCampaignProgressWS(c)
	}))

	// Lead list routes
	leadList := api.Group("/lead-lists")
	leadList.Post("/", leadController.CreateLeadList)
	leadList.Get("/", leadController.GetLeadLists)
	leadList.Get("/:id", leadController.GetLeadList)
	leadList.Delete("/:id", leadController.DeleteLeadList)
	leadList.Post("/:id/leads/import", leadController.ImportLeads)
	leadList.Get("/:id/leads", leadController.GetLeadListLeads)

	// WhatsApp connection routes
	whatsapp := api.Group("/whatsapp")
	whatsapp.Post("/instance", whatsappController.CreateInstance)
	whatsapp.Get("/qr", whatsappController.GetQRCode)
	whatsapp.Get("/state", whatsappController.GetConnectionState)

	log.Println("API routes initialized successfully")
}
