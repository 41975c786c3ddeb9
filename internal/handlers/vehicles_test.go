package handlers

import (
	"fmt"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/soltixdb/telewatch/internal/alert"
	"github.com/soltixdb/telewatch/internal/fleet"
	"github.com/soltixdb/telewatch/internal/models"
	"github.com/soltixdb/telewatch/internal/report"
	"github.com/soltixdb/telewatch/internal/utils"
)

func TestIngestSamples_Single(t *testing.T) {
	app := newTestApp(newTestHandler(t))

	resp := doRequest(t, app, "POST", "/v1/vehicles/truck-1/samples",
		`{"metric":"speed","value":42.5,"time":"2024-01-01T08:00:00Z"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var result models.IngestResponse
	decodeBody(t, resp.Body, &result)
	if result.Accepted != 1 || result.Rejected != 0 {
		t.Errorf("Unexpected result %+v", result)
	}
}

func TestIngestSamples_SingleInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"metric":`, CodeInvalidRequest},
		{"missing metric", `{"value":1,"time":"2024-01-01T08:00:00Z"}`, CodeInvalidSample},
		{"non numeric value", `{"metric":"speed","value":"fast","time":"2024-01-01T08:00:00Z"}`, CodeInvalidSample},
		{"missing time", `{"metric":"speed","value":1}`, CodeInvalidSample},
		{"bad time", `{"metric":"speed","value":1,"time":"yesterday"}`, CodeInvalidSample},
		{"empty batch", `{"samples":[]}`, CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(newTestHandler(t))
			resp := doRequest(t, app, "POST", "/v1/vehicles/truck-1/samples", tt.body)
			if resp.StatusCode != fiber.StatusBadRequest {
				t.Fatalf("Expected status 400, got %d", resp.StatusCode)
			}
			var errResp models.ErrorResponse
			decodeBody(t, resp.Body, &errResp)
			if errResp.Error.Code != tt.code {
				t.Errorf("Expected code %s, got %s (%s)", tt.code, errResp.Error.Code, errResp.Error.Message)
			}
		})
	}
}

func TestIngestSamples_OutOfOrder(t *testing.T) {
	app := newTestApp(newTestHandler(t))

	resp := doRequest(t, app, "POST", "/v1/vehicles/truck-1/samples",
		`{"metric":"speed","value":10,"time":"2024-01-01T08:01:00Z"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	resp = doRequest(t, app, "POST", "/v1/vehicles/truck-1/samples",
		`{"metric":"speed","value":10,"time":"2024-01-01T08:00:00Z"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", resp.StatusCode)
	}
	var errResp models.ErrorResponse
	decodeBody(t, resp.Body, &errResp)
	if errResp.Error.Code != CodeInvalidSample {
		t.Errorf("Expected code %s, got %s", CodeInvalidSample, errResp.Error.Code)
	}
}

func TestIngestSamples_Batch(t *testing.T) {
	h := newTestHandler(t)
	app := newTestApp(h)

	body := `{"samples":[
		{"metric":"speed","value":10,"time":"2024-01-01T08:00:00Z"},
		{"metric":"speed","value":"12","time":"2024-01-01T08:00:01Z"},
		{"metric":"","value":1,"time":"2024-01-01T08:00:01Z"},
		{"metric":"speed","value":35,"time":"2024-01-01T08:00:02Z"},
		{"metric":"speed","value":30,"time":"2024-01-01T07:00:00Z"}
	]}`
	resp := doRequest(t, app, "POST", "/v1/vehicles/truck-1/samples", body)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var result models.IngestResponse
	decodeBody(t, resp.Body, &result)
	if result.Accepted != 3 || result.Rejected != 2 {
		t.Fatalf("Expected 3 accepted and 2 rejected, got %+v", result)
	}
	if result.Errors[0].Index != 2 || result.Errors[1].Index != 4 {
		t.Errorf("Unexpected rejected indexes %+v", result.Errors)
	}
	if result.Alerts != 1 {
		t.Errorf("Expected one rapid acceleration alert, got %d", result.Alerts)
	}

	alerts, err := h.fleet.ActiveAlerts("truck-1", t0)
	if err != nil {
		t.Fatalf("ActiveAlerts() error = %v", err)
	}
	if len(alerts) != 1 || alerts[0].Kind != alert.KindRapidAcceleration {
		t.Errorf("Unexpected alerts %+v", alerts)
	}
}

func TestIngestSamples_BatchTooLarge(t *testing.T) {
	app := newTestApp(newTestHandler(t))

	items := make([]string, utils.MaxSamplesPerRequest+1)
	for i := range items {
		items[i] = `{"metric":"fuel_level","value":50,"time":"2024-01-01T08:00:00Z"}`
	}
	resp := doRequest(t, app, "POST", "/v1/vehicles/truck-1/samples",
		fmt.Sprintf(`{"samples":[%s]}`, strings.Join(items, ",")))
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", resp.StatusCode)
	}
}

func TestIngestSamples_FleetFull(t *testing.T) {
	app := newTestApp(newTestHandler(t))

	for _, id := range []string{"truck-1", "truck-2"} {
		resp := doRequest(t, app, "POST", "/v1/vehicles/"+id+"/samples",
			`{"metric":"speed","value":10,"time":"2024-01-01T08:00:00Z"}`)
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("Expected status 200 for %s, got %d", id, resp.StatusCode)
		}
	}

	resp := doRequest(t, app, "POST", "/v1/vehicles/truck-3/samples",
		`{"samples":[{"metric":"speed","value":10,"time":"2024-01-01T08:00:00Z"}]}`)
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("Expected status 503, got %d", resp.StatusCode)
	}
	var errResp models.ErrorResponse
	decodeBody(t, resp.Body, &errResp)
	if errResp.Error.Code != CodeFleetFull {
		t.Errorf("Expected code %s, got %s", CodeFleetFull, errResp.Error.Code)
	}
}

func TestUpdatePosition(t *testing.T) {
	h := newTestHandler(t)
	app := newTestApp(h)

	// 30 km/h in a restricted 20 km/h zone
	resp := doRequest(t, app, "POST", "/v1/vehicles/truck-2/positions",
		`{"latitude":40.755,"longitude":-73.995,"speed":30,"time":"2024-01-01T08:00:00Z"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	var result models.IngestResponse
	decodeBody(t, resp.Body, &result)
	if result.Accepted != 1 || result.Alerts != 1 {
		t.Fatalf("Unexpected result %+v", result)
	}

	resp = doRequest(t, app, "GET", "/v1/vehicles/truck-2/alerts", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	var alertsResp struct {
		VehicleID string        `json:"vehicle_id"`
		Alerts    []alert.Alert `json:"alerts"`
		Count     int           `json:"count"`
	}
	decodeBody(t, resp.Body, &alertsResp)
	if alertsResp.Count != 1 || alertsResp.Alerts[0].Zone != "school" {
		t.Fatalf("Unexpected alerts %+v", alertsResp)
	}
	if alertsResp.Alerts[0].Severity != alert.SeverityCritical {
		t.Errorf("Expected critical severity, got %s", alertsResp.Alerts[0].Severity)
	}
}

func TestUpdatePosition_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"latitude out of range", `{"latitude":95,"longitude":0,"time":"2024-01-01T08:00:00Z"}`, CodeInvalidPosition},
		{"missing longitude", `{"latitude":40,"time":"2024-01-01T08:00:00Z"}`, CodeInvalidPosition},
		{"bad speed", `{"latitude":40,"longitude":0,"speed":"fast","time":"2024-01-01T08:00:00Z"}`, CodeInvalidPosition},
		{"missing time", `{"latitude":40,"longitude":0}`, CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(newTestHandler(t))
			resp := doRequest(t, app, "POST", "/v1/vehicles/truck-1/positions", tt.body)
			if resp.StatusCode != fiber.StatusBadRequest {
				t.Fatalf("Expected status 400, got %d", resp.StatusCode)
			}
			var errResp models.ErrorResponse
			decodeBody(t, resp.Body, &errResp)
			if errResp.Error.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, errResp.Error.Code)
			}
		})
	}
}

func TestVehicleReport(t *testing.T) {
	app := newTestApp(newTestHandler(t))

	doRequest(t, app, "POST", "/v1/vehicles/truck-1/samples",
		`{"samples":[{"metric":"engine_temp","value":90,"time":"2024-01-01T08:00:00Z"},{"metric":"engine_temp","value":92,"time":"2024-01-01T08:00:10Z"}]}`)

	resp := doRequest(t, app, "GET", "/v1/vehicles/truck-1/report?at=2024-01-01T08:01:00Z", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	var rep report.Report
	decodeBody(t, resp.Body, &rep)
	if rep.VehicleID != "truck-1" {
		t.Errorf("Expected truck-1, got %s", rep.VehicleID)
	}
	if len(rep.Metrics) != 1 || rep.Metrics[0].Count != 2 {
		t.Errorf("Unexpected metrics %+v", rep.Metrics)
	}
	if rep.Score != 100 {
		t.Errorf("Expected score 100, got %v", rep.Score)
	}

	resp = doRequest(t, app, "GET", "/v1/vehicles/truck-1/report?at=noon", "")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected status 400 for bad at, got %d", resp.StatusCode)
	}
}

func TestUnknownVehicle(t *testing.T) {
	app := newTestApp(newTestHandler(t))

	for _, path := range []string{"/v1/vehicles/ghost/report", "/v1/vehicles/ghost/alerts"} {
		resp := doRequest(t, app, "GET", path, "")
		if resp.StatusCode != fiber.StatusNotFound {
			t.Errorf("%s: expected status 404, got %d", path, resp.StatusCode)
			continue
		}
		var errResp models.ErrorResponse
		decodeBody(t, resp.Body, &errResp)
		if errResp.Error.Code != CodeNotFound {
			t.Errorf("%s: expected code %s, got %s", path, CodeNotFound, errResp.Error.Code)
		}
	}
}

func TestListVehiclesAndFleetReport(t *testing.T) {
	app := newTestApp(newTestHandler(t))

	resp := doRequest(t, app, "GET", "/v1/vehicles", "")
	var list models.VehicleListResponse
	decodeBody(t, resp.Body, &list)
	if list.Count != 0 || len(list.Vehicles) != 0 {
		t.Errorf("Expected empty fleet, got %+v", list)
	}

	for _, id := range []string{"van-2", "truck-1"} {
		doRequest(t, app, "POST", "/v1/vehicles/"+id+"/samples",
			`{"metric":"fuel_level","value":60,"time":"2024-01-01T08:00:00Z"}`)
	}

	resp = doRequest(t, app, "GET", "/v1/vehicles", "")
	decodeBody(t, resp.Body, &list)
	if list.Count != 2 || list.Vehicles[0] != "truck-1" || list.Vehicles[1] != "van-2" {
		t.Errorf("Expected sorted vehicles, got %+v", list)
	}

	resp = doRequest(t, app, "GET", "/v1/fleet/report", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	var summary fleet.Summary
	decodeBody(t, resp.Body, &summary)
	if summary.Vehicles != 2 || summary.AverageScore != 100 {
		t.Errorf("Unexpected summary %+v", summary)
	}
}

func TestListZones(t *testing.T) {
	app := newTestApp(newTestHandler(t))

	resp := doRequest(t, app, "GET", "/v1/zones", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	var result struct {
		Zones     []map[string]interface{} `json:"zones"`
		Count     int                      `json:"count"`
		Tolerance float64                  `json:"tolerance"`
	}
	decodeBody(t, resp.Body, &result)
	if result.Count != 1 || result.Zones[0]["name"] != "school" || result.Tolerance != 5 {
		t.Errorf("Unexpected zones %+v", result)
	}
}
