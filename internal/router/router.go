package router

import (
	"github.com/buildingvitals/vitalstore/internal/config"
	"github.com/buildingvitals/vitalstore/internal/handlers"
	"github.com/buildingvitals/vitalstore/internal/logging"
	"github.com/buildingvitals/vitalstore/internal/middleware"
	"github.com/buildingvitals/vitalstore/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Setup configures all routes and middlewares
func Setup(
	app *fiber.App,
	logger *logging.Logger,
	queryService *services.QueryService,
	backfillService *services.BackfillService,
	adminService *services.AdminService,
	cfg config.Config,
) *handlers.Handler {
	h := handlers.New(logger, queryService, backfillService, adminService)

	// Global middlewares
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-API-Key,X-Request-ID",
	}))
	app.Use(logging.FiberMiddleware(logger))

	// Health check (no auth required)
	app.Get("/health", h.Health)

	// API key authentication middleware
	authMiddleware := middleware.APIKeyAuth(logger, cfg.Auth.APIKeys, cfg.Auth.Enabled)

	// API v1 routes (protected by API key)
	v1 := app.Group("/v1", authMiddleware)

	// Query Routes
	v1.Get("/timeseries/query", h.Query)

	// Backfill Routes
	v1.Post("/backfill/start", h.BackfillStart)
	v1.Get("/backfill/status", h.BackfillStatus)
	v1.Post("/backfill/cancel", h.BackfillCancel)

	// Admin Routes (protected by API key)
	admin := v1.Group("/admin")
	admin.Post("/archive/run", h.ArchiveRun)
	admin.Get("/archive/status", h.ArchiveStatus)
	admin.Get("/hotstore/stats", h.HotStoreStats)
	admin.Get("/coverage", h.Coverage)

	// 404 handler
	app.Use(h.NotFound)

	return h
}

// New creates a new Fiber app with configuration
func New(
	logger *logging.Logger,
	queryService *services.QueryService,
	backfillService *services.BackfillService,
	adminService *services.AdminService,
	cfg config.Config,
) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "VitalStore API",
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	Setup(app, logger, queryService, backfillService, adminService, cfg)

	return app
}
