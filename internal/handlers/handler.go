package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/soltixdb/telewatch/internal/fleet"
	"github.com/soltixdb/telewatch/internal/geofence"
	"github.com/soltixdb/telewatch/internal/logging"
	"github.com/soltixdb/telewatch/internal/models"
	"github.com/soltixdb/telewatch/internal/monitor"
	"github.com/soltixdb/telewatch/internal/services"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Error codes returned in models.ErrorDetail.Code
const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeInvalidSample   = "INVALID_SAMPLE"
	CodeInvalidPosition = "INVALID_POSITION"
	CodeNotFound        = "NOT_FOUND"
	CodeFleetFull       = "FLEET_FULL"
)

// Handler contains all HTTP handlers
type Handler struct {
	logger *logging.Logger
	fleet  *fleet.Fleet
	zones  *geofence.Engine
	alerts *services.AlertPublisher
	now    func() time.Time
}

// New creates a new handler instance. alerts may be nil when no queue is
// configured.
func New(logger *logging.Logger, f *fleet.Fleet, zones *geofence.Engine, alerts *services.AlertPublisher) *Handler {
	if logger == nil {
		logger = logging.Global()
	}
	if zones == nil {
		zones = geofence.NewEngine(0, 0)
	}
	return &Handler{
		logger: logger.Component("http"),
		fleet:  f,
		zones:  zones,
		alerts: alerts,
		now:    time.Now,
	}
}

func errorJSON(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    code,
			Message: message,
			Path:    c.Path(),
		},
	})
}

// ingestError logs a refused write and maps the fleet or monitor error onto
// a response
func ingestError(ctx context.Context, c *fiber.Ctx, err error) error {
	if errors.Is(err, fleet.ErrFleetFull) {
		logging.ErrorCtx(ctx, "Vehicle limit reached", "error", err)
	} else {
		logging.WarnCtx(ctx, "Write rejected", "error", err)
	}

	switch {
	case errors.Is(err, monitor.ErrInvalidPosition):
		return errorJSON(c, fiber.StatusBadRequest, CodeInvalidPosition, err.Error())
	case errors.Is(err, monitor.ErrInvalidSample), errors.Is(err, monitor.ErrOutOfOrder):
		return errorJSON(c, fiber.StatusBadRequest, CodeInvalidSample, err.Error())
	case errors.Is(err, fleet.ErrFleetFull):
		return errorJSON(c, fiber.StatusServiceUnavailable, CodeFleetFull, err.Error())
	default:
		return err
	}
}

// vehicleContext carries the handler logger and the vehicle ID on top of the
// request context set up by the logging middleware
func (h *Handler) vehicleContext(c *fiber.Ctx, vehicleID string) context.Context {
	ctx := logging.WithLogger(c.UserContext(), h.logger)
	return logging.WithVehicleID(ctx, vehicleID)
}

// parseTime parses a required RFC3339 timestamp field
func parseTime(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("'%s' field is required", field)
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("'%s' must be an RFC3339 timestamp", field)
	}
	return ts, nil
}

// readTime returns the optional ?at= query time, defaulting to now
func (h *Handler) readTime(c *fiber.Ctx) (time.Time, error) {
	at := c.Query("at")
	if at == "" {
		return h.now(), nil
	}
	return parseTime("at", at)
}
