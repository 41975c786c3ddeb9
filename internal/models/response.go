package models

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Vehicles  int    `json:"vehicles"`
	Zones     int    `json:"zones"`
}

// IngestResponse represents the result of a sample or position write
type IngestResponse struct {
	Accepted int              `json:"accepted"`
	Rejected int              `json:"rejected"`
	Alerts   int              `json:"alerts"`
	Errors   []RejectedSample `json:"errors,omitempty"`
}

// RejectedSample explains why one item of a batch was refused
type RejectedSample struct {
	Index   int    `json:"index"`
	Metric  string `json:"metric,omitempty"`
	Message string `json:"message"`
}

// VehicleListResponse lists the vehicles the fleet has seen
type VehicleListResponse struct {
	Vehicles []string `json:"vehicles"`
	Count    int      `json:"count"`
}

// ErrorResponse represents error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Path    string                 `json:"path,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}
