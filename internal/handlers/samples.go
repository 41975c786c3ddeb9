package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/soltixdb/telewatch/internal/alert"
	"github.com/soltixdb/telewatch/internal/fleet"
	"github.com/soltixdb/telewatch/internal/logging"
	"github.com/soltixdb/telewatch/internal/models"
	"github.com/soltixdb/telewatch/internal/utils"
)

// SampleRequest is one reading in a samples POST
type SampleRequest struct {
	Metric string      `json:"metric"`
	Value  interface{} `json:"value"`
	Time   string      `json:"time"`
}

// sampleBody accepts either a single reading or {"samples": [...]}
type sampleBody struct {
	SampleRequest
	Samples []SampleRequest `json:"samples"`
}

func (r SampleRequest) toSample() (models.Sample, error) {
	if strings.TrimSpace(r.Metric) == "" {
		return models.Sample{}, fmt.Errorf("'metric' field is required")
	}
	value, ok := utils.ToFloat64(r.Value)
	if !ok {
		return models.Sample{}, fmt.Errorf("'value' must be a finite number")
	}
	ts, err := parseTime("time", r.Time)
	if err != nil {
		return models.Sample{}, err
	}
	return models.NewSample(r.Metric, value, ts), nil
}

// IngestSamples handles POST /v1/vehicles/:vehicle/samples.
// A refused single reading fails the request. Refused readings of a batch
// are listed in the response and the rest are kept.
func (h *Handler) IngestSamples(c *fiber.Ctx) error {
	vehicleID := c.Params("vehicle")
	ctx := h.vehicleContext(c, vehicleID)

	var body sampleBody
	if err := c.BodyParser(&body); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, CodeInvalidRequest, "Failed to parse request body: "+err.Error())
	}

	if body.Samples == nil {
		return h.ingestSingle(ctx, c, vehicleID, body.SampleRequest)
	}

	if len(body.Samples) == 0 {
		return errorJSON(c, fiber.StatusBadRequest, CodeInvalidRequest, "'samples' must not be empty")
	}
	if len(body.Samples) > utils.MaxSamplesPerRequest {
		return errorJSON(c, fiber.StatusBadRequest, CodeInvalidRequest,
			fmt.Sprintf("too many samples: %d (max %d)", len(body.Samples), utils.MaxSamplesPerRequest))
	}

	var resp models.IngestResponse
	var raised []alert.Alert
	for i, req := range body.Samples {
		sample, err := req.toSample()
		if err == nil {
			var alerts []alert.Alert
			alerts, err = h.fleet.Ingest(vehicleID, sample)
			raised = append(raised, alerts...)
		}
		if errors.Is(err, fleet.ErrFleetFull) {
			return ingestError(ctx, c, err)
		}
		if err != nil {
			resp.Rejected++
			resp.Errors = append(resp.Errors, models.RejectedSample{Index: i, Metric: req.Metric, Message: err.Error()})
			continue
		}
		resp.Accepted++
	}
	resp.Alerts = len(raised)

	if resp.Rejected > 0 {
		logging.InfoCtx(ctx, "Batch partially rejected",
			"accepted", resp.Accepted,
			"rejected", resp.Rejected,
		)
	}

	h.alerts.Publish(ctx, vehicleID, raised)
	return c.JSON(resp)
}

func (h *Handler) ingestSingle(ctx context.Context, c *fiber.Ctx, vehicleID string, req SampleRequest) error {
	sample, err := req.toSample()
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, CodeInvalidSample, err.Error())
	}

	raised, err := h.fleet.Ingest(vehicleID, sample)
	if err != nil {
		return ingestError(ctx, c, err)
	}

	h.alerts.Publish(ctx, vehicleID, raised)
	return c.JSON(models.IngestResponse{Accepted: 1, Alerts: len(raised)})
}
