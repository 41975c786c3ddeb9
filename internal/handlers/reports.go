package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/soltixdb/telewatch/internal/fleet"
	"github.com/soltixdb/telewatch/internal/models"
)

// VehicleReport handles GET /v1/vehicles/:vehicle/report
func (h *Handler) VehicleReport(c *fiber.Ctx) error {
	at, err := h.readTime(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, CodeInvalidRequest, err.Error())
	}

	rep, err := h.fleet.Snapshot(c.Params("vehicle"), at)
	if errors.Is(err, fleet.ErrUnknownVehicle) {
		return errorJSON(c, fiber.StatusNotFound, CodeNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(rep)
}

// VehicleAlerts handles GET /v1/vehicles/:vehicle/alerts
func (h *Handler) VehicleAlerts(c *fiber.Ctx) error {
	at, err := h.readTime(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, CodeInvalidRequest, err.Error())
	}

	alerts, err := h.fleet.ActiveAlerts(c.Params("vehicle"), at)
	if errors.Is(err, fleet.ErrUnknownVehicle) {
		return errorJSON(c, fiber.StatusNotFound, CodeNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"vehicle_id": c.Params("vehicle"),
		"alerts":     alerts,
		"count":      len(alerts),
	})
}

// ListVehicles handles GET /v1/vehicles
func (h *Handler) ListVehicles(c *fiber.Ctx) error {
	vehicles := h.fleet.Vehicles()
	return c.JSON(models.VehicleListResponse{
		Vehicles: vehicles,
		Count:    len(vehicles),
	})
}

// FleetReport handles GET /v1/fleet/report
func (h *Handler) FleetReport(c *fiber.Ctx) error {
	at, err := h.readTime(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, CodeInvalidRequest, err.Error())
	}
	return c.JSON(h.fleet.FleetReport(at))
}

// ListZones handles GET /v1/zones
func (h *Handler) ListZones(c *fiber.Ctx) error {
	zones := h.zones.Zones()
	return c.JSON(fiber.Map{
		"zones":     zones,
		"count":     len(zones),
		"tolerance": h.zones.Tolerance(),
	})
}
