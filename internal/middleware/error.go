package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/soltixdb/telewatch/internal/logging"
	"github.com/soltixdb/telewatch/internal/models"
)

// codeForStatus maps an HTTP status onto the error code family used by the
// handlers
func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity, fiber.StatusRequestEntityTooLarge:
		return "INVALID_REQUEST"
	case fiber.StatusUnauthorized, fiber.StatusForbidden:
		return "UNAUTHORIZED"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusServiceUnavailable:
		return "UNAVAILABLE"
	}
	if status >= 500 {
		return "INTERNAL_ERROR"
	}
	return "ERROR"
}

// ErrorHandler renders errors returned by handlers as models.ErrorResponse.
// Messages of non-fiber errors are logged, not returned.
func ErrorHandler(logger *logging.Logger) fiber.ErrorHandler {
	log := logger.Component("http")

	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
			message = fe.Message
		}

		fields := []interface{}{
			"path", c.Path(),
			"method", c.Method(),
			"status", status,
			"error", err,
		}
		if status >= 500 {
			log.Error("Request error", fields...)
		} else {
			log.Warn("Request error", fields...)
		}

		return c.Status(status).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    codeForStatus(status),
				Message: message,
				Path:    c.Path(),
			},
		})
	}
}
