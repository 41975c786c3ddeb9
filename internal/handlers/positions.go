package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/soltixdb/telewatch/internal/models"
	"github.com/soltixdb/telewatch/internal/utils"
)

// PositionRequest is the body of a positions POST
type PositionRequest struct {
	Latitude  interface{} `json:"latitude"`
	Longitude interface{} `json:"longitude"`
	Speed     interface{} `json:"speed"`
	Time      string      `json:"time"`
}

// UpdatePosition handles POST /v1/vehicles/:vehicle/positions
func (h *Handler) UpdatePosition(c *fiber.Ctx) error {
	vehicleID := c.Params("vehicle")

	var req PositionRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, CodeInvalidRequest, "Failed to parse request body: "+err.Error())
	}

	lat, okLat := utils.ToFloat64(req.Latitude)
	lon, okLon := utils.ToFloat64(req.Longitude)
	if !okLat || !okLon {
		return errorJSON(c, fiber.StatusBadRequest, CodeInvalidPosition, "'latitude' and 'longitude' must be finite numbers")
	}
	speed := 0.0
	if req.Speed != nil {
		var ok bool
		if speed, ok = utils.ToFloat64(req.Speed); !ok {
			return errorJSON(c, fiber.StatusBadRequest, CodeInvalidPosition, "'speed' must be a finite number")
		}
	}
	at, err := parseTime("time", req.Time)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, CodeInvalidRequest, err.Error())
	}

	ctx := h.vehicleContext(c, vehicleID)
	raised, err := h.fleet.UpdatePosition(vehicleID, models.Position{Latitude: lat, Longitude: lon}, speed, at)
	if err != nil {
		return ingestError(ctx, c, err)
	}

	h.alerts.Publish(ctx, vehicleID, raised)
	return c.JSON(models.IngestResponse{Accepted: 1, Alerts: len(raised)})
}
