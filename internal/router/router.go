package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/soltixdb/telewatch/internal/config"
	"github.com/soltixdb/telewatch/internal/handlers"
	"github.com/soltixdb/telewatch/internal/logging"
	"github.com/soltixdb/telewatch/internal/middleware"
)

// Setup configures all routes and middlewares
func Setup(app *fiber.App, logger *logging.Logger, h *handlers.Handler, auth config.AuthConfig) {
	// Global middlewares
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-API-Key,X-Request-ID",
	}))
	app.Use(logging.FiberMiddleware(logger))

	// Health check (no auth required)
	app.Get("/health", h.Health)

	v1 := app.Group("/v1", middleware.APIKeyAuth(logger, auth.APIKeys, auth.Enabled))

	// Ingestion
	v1.Post("/vehicles/:vehicle/samples", h.IngestSamples)
	v1.Post("/vehicles/:vehicle/positions", h.UpdatePosition)

	// Reports
	v1.Get("/vehicles", h.ListVehicles)
	v1.Get("/vehicles/:vehicle/report", h.VehicleReport)
	v1.Get("/vehicles/:vehicle/alerts", h.VehicleAlerts)
	v1.Get("/fleet/report", h.FleetReport)

	v1.Get("/zones", h.ListZones)

	// 404 handler
	app.Use(h.NotFound)
}

// New creates a new Fiber app with configuration
func New(logger *logging.Logger, h *handlers.Handler, cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Telewatch Monitor",
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	Setup(app, logger, h, cfg.Auth)

	return app
}
