package domain

// ServiceHealth reports the health of one dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latency_ms"`
	LastChecked string `json:"last_checked"`
}

// HealthResponse is the GET /healthz payload.
type HealthResponse struct {
	Status    string          `json:"status"`
	Services  []ServiceHealth `json:"services"`
	Timestamp string          `json:"timestamp"`
}
