/**
 * @description
 * Main entry point for the SoleStack Backend API.
 * Initializes the Fiber web server, loads configuration, and sets up routes.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2: Web framework
 * - github.com/solestack-project/backend/internal/config: Config loader
 * - github.com/solestack-project/backend/internal/db: Database connections
 *
 * @notes
 * - Connects to Postgres and Redis on startup.
 * - Sets up basic middleware (CORS, Logger, Recover).
 * - Job routes can drain the queue in-process, so the API carries the full
 *   provider registry even though most traffic is read-only.
 */

package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/solestack-project/backend/internal/api"
	"github.com/solestack-project/backend/internal/config"
	"github.com/solestack-project/backend/internal/db"
	"github.com/solestack-project/backend/internal/services"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize Database Connections
	pgDB, err := db.ConnectPostgres(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}

	redisClient, err := db.ConnectRedis(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	// 3. Initialize Fiber App
	app := fiber.New(fiber.Config{
		AppName:       "SoleStack Market Data",
		StrictRouting: true,
		CaseSensitive: true,
	})

	// 4. Global Middleware
	app.Use(recover.New()) // Panic recovery
	app.Use(logger.New())  // Request logging
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*", // TODO: Lock this down in production
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// 5. Routes
	registry := services.BuildRegistry(cfg)
	api.SetupRoutes(app, pgDB, redisClient, registry, cfg)

	// 6. Start Server
	log.Printf("🚀 Starting SoleStack Backend on port %s", cfg.Server.Port)
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
