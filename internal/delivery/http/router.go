package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/smartcity/simulator/internal/service"
)

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, sim *service.Simulation, gateway service.Gateway, repo service.SnapshotRepository) {
	handler := NewHandler(sim, gateway, repo)

	// Health check
	app.Get("/health", handler.HealthCheck)

	// API v1 routes
	api := app.Group("/api/v1")
	{
		api.Get("/snapshot", handler.GetSnapshot)
		api.Get("/stats", handler.GetStats)
		api.Get("/history", handler.GetHistory)

		// Manual signal-timing adjustments, applied on the next tick
		api.Post("/adjustments", handler.PostAdjustment)
	}
}
