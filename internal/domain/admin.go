package domain

import "time"

// AdminOverview is the aggregate the admin dashboard loads in one call:
// outstanding requests plus the latest contact messages.
type AdminOverview struct {
	PendingRequests []Profile        `json:"pending_requests"`
	RecentMessages  []ContactMessage `json:"recent_messages"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// RequestMetrics is a snapshot of request-outcome counters for the
// GET /v1/metrics/requests endpoint.
type RequestMetrics struct {
	Activated int64 `json:"activated"`
	Requested int64 `json:"requested"`
	Accepted  int64 `json:"accepted"`
	Refused   int64 `json:"refused"`
	Expired   int64 `json:"expired"`
	Total     int64 `json:"total"`
}
