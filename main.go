package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"leadbaze/config"
	"leadbaze/middleware"
	"leadbaze/routes"
	"leadbaze/stream"
	"leadbaze/utils"
	"leadbaze/worker"
)

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "LEADBAZE: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Error reporting
	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry initialization failed: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	// Fan-out broker for campaign status streams
	broker := stream.NewBroker(log.New(os.Stdout, "STREAM: ", log.LstdFlags))

	// Workflow engine and WhatsApp gateway clients
	dispatcher := utils.NewDispatcher(config.DB,
		log.New(os.Stdout, "DISPATCH: ", log.LstdFlags),
		config.AppConfig.WorkflowWebhookURL,
		config.AppConfig.DispatchesPerMinute)
	gateway := utils.NewGatewayClient(config.AppConfig.GatewayBaseURL,
		config.AppConfig.GatewayAPIKey,
		log.New(os.Stdout, "GATEWAY: ", log.LstdFlags))

	// Initialize and start dispatch worker
	dispatchWorker := worker.NewDispatchWorker(config.DB, dispatcher, broker,
		log.New(os.Stdout, "WORKER: ", log.LstdFlags),
		time.Duration(config.AppConfig.SendingStallTimeout)*time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatchWorker.Start(ctx)

	// Setup routes
	routes.SetupRoutes(app, config.DB, broker, dispatcher, gateway)

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
