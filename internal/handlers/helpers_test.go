package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/soltixdb/telewatch/internal/fleet"
	"github.com/soltixdb/telewatch/internal/geofence"
	"github.com/soltixdb/telewatch/internal/logging"
	"github.com/soltixdb/telewatch/internal/monitor"
)

var t0 = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

// newTestHandler builds a handler over a two-vehicle fleet with one
// restricted zone and a clock frozen at t0
func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	zones := geofence.NewEngine(5, 20)
	if err := zones.Register(geofence.Zone{
		Name: "school", MinLat: 40.75, MaxLat: 40.76, MinLon: -74.0, MaxLon: -73.99,
		SpeedLimit: 20, Kind: geofence.KindRestricted,
	}); err != nil {
		t.Fatalf("failed to register zone: %v", err)
	}
	f, err := fleet.New(monitor.DefaultConfig(), zones, 2, logging.NewNop())
	if err != nil {
		t.Fatalf("failed to create fleet: %v", err)
	}
	h := New(logging.NewNop(), f, zones, nil)
	h.now = func() time.Time { return t0 }
	return h
}

func newTestApp(h *Handler) *fiber.App {
	app := fiber.New()
	v1 := app.Group("/v1")
	v1.Get("/vehicles", h.ListVehicles)
	v1.Post("/vehicles/:vehicle/samples", h.IngestSamples)
	v1.Post("/vehicles/:vehicle/positions", h.UpdatePosition)
	v1.Get("/vehicles/:vehicle/report", h.VehicleReport)
	v1.Get("/vehicles/:vehicle/alerts", h.VehicleAlerts)
	v1.Get("/fleet/report", h.FleetReport)
	v1.Get("/zones", h.ListZones)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, r io.Reader, v interface{}) {
	t.Helper()
	body, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("Failed to unmarshal response %s: %v", body, err)
	}
}
