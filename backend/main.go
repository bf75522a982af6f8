package main

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"learnpath/backend/config"
	"learnpath/backend/jobs"
	"learnpath/backend/middleware"
	"learnpath/backend/routes"
	"learnpath/backend/services"
	"learnpath/backend/utils"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logger := utils.InitLogger(utils.LoggerConfig{
		Format:       cfg.LogFormat,
		Output:       os.Stdout,
		EnableColors: cfg.LogFormat != "json",
	})

	// Initialize database
	db, err := utils.InitDB(cfg)
	if err != nil {
		logger.Fatalf("Error initializing database: %v", err)
	}

	// Attempt-failure notifications
	var notifier services.Notifier = jobs.LogNotifier{Logger: logger}
	if cfg.RedisAddr != "" {
		jm := jobs.NewJobManager(cfg.RedisAddr, cfg.NotifyQueue, logger)
		jm.RegisterHandlers(jobs.LogNotifier{Logger: logger})
		go func() {
			if err := jm.Start(); err != nil {
				logger.Printf("Job worker stopped: %v", err)
			}
		}()
		defer jm.Stop()
		notifier = jm
	}

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(middleware.LoggingMiddleware(logger))

	routes.SetupRoutes(app, db, cfg, notifier, logger)

	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		logger.Printf("Server stopped: %v", err)
	}
}
