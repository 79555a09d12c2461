package domain

// ============================================================
// Health & Diagnostics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Detail      string `json:"detail,omitempty"`
	LastChecked string `json:"lastChecked"`
}

// Diagnostics is returned by GET /v1/diagnostics.
type Diagnostics struct {
	BoardRefetches    int64            `json:"boardRefetches"`
	BoardCacheHitRate float64          `json:"boardCacheHitRate"`
	PollTicks         map[string]int64 `json:"pollTicks"`
}
