package api

// LatencyRequest is the body of POST /api/latency.
// Both fields are optional: Regions defaults to empty and ThresholdMs to the
// configured default threshold (180 ms unless overridden).
type LatencyRequest struct {
	Regions     []string `json:"regions"`
	ThresholdMs *float64 `json:"threshold_ms,omitempty"`
}

// Threshold returns ThresholdMs, or def when it was not supplied.
func (r LatencyRequest) Threshold(def float64) float64 {
	if r.ThresholdMs == nil {
		return def
	}
	return *r.ThresholdMs
}

// HealthResponse is the payload for GET / and GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Records int    `json:"records"`
	Regions int    `json:"regions"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
