package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/smartcity/simulator/internal/domain"
	"github.com/smartcity/simulator/internal/service"
)

// Handler contains all HTTP handlers
type Handler struct {
	sim     *service.Simulation
	gateway service.Gateway
	repo    service.SnapshotRepository
}

// NewHandler creates a new handler
func NewHandler(sim *service.Simulation, gateway service.Gateway, repo service.SnapshotRepository) *Handler {
	return &Handler{
		sim:     sim,
		gateway: gateway,
		repo:    repo,
	}
}

// HealthCheck returns process, storage, and broker health
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	storage := "ok"
	if err := h.repo.Health(ctx); err != nil {
		storage = err.Error()
	}
	broker := "ok"
	if err := h.gateway.Health(ctx); err != nil {
		broker = err.Error()
	}

	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "traffic-simulator",
		"tick":    h.sim.CurrentTick(),
		"storage": storage,
		"broker":  broker,
	})
}

// GetSnapshot returns the latest telemetry snapshot
func (h *Handler) GetSnapshot(c *fiber.Ctx) error {
	update := h.sim.Latest()
	if update == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "No tick completed yet")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    update,
	})
}

// GetStats returns run-level aggregates
func (h *Handler) GetStats(c *fiber.Ctx) error {
	update := h.sim.Latest()
	if update == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "No tick completed yet")
	}

	var congestion float64
	for _, in := range update.Intersections {
		congestion += in.Congestion
	}
	if len(update.Intersections) > 0 {
		congestion /= float64(len(update.Intersections))
	}

	return c.JSON(fiber.Map{
		"success":            true,
		"tick":               update.Tick,
		"vehicles":           update.TotalVehicles,
		"active_accidents":   len(update.Accidents),
		"average_congestion": congestion,
	})
}

// GetHistory returns recent persisted snapshots
func (h *Handler) GetHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 60)
	if limit < 1 || limit > 1000 {
		limit = 60
	}

	data, err := h.repo.RecentSnapshots(c.Context(), limit)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch snapshot history")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"count":   len(data),
	})
}

// PostAdjustment injects a light adjustment through the same validated path
// as the message bus; it takes effect at the start of the next tick.
func (h *Handler) PostAdjustment(c *fiber.Ctx) error {
	var adj domain.LightAdjustment
	if err := c.BodyParser(&adj); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := h.sim.QueueAdjustment(adj); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return c.JSON(fiber.Map{
		"success": true,
		"queued":  adj,
	})
}
