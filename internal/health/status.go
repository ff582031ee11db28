package health

import "time"

// Status represents the assessed health of the upstream API.
type Status string

const (
	StatusUnknown   Status = "unknown"
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Outcome is the result of a single probe or data-fetch attempt.
// Once recorded it is never modified.
type Outcome struct {
	Succeeded   bool
	Latency     time.Duration
	ObservedAt  time.Time
	ErrorReason string
}

// Snapshot is a read-only aggregated view of the current metrics.
// Consumers must not mutate it; a new one is built on every read.
type Snapshot struct {
	Status               Status        `json:"status"`
	SuccessRate          float64       `json:"success_rate"`
	AvgResponseTime      time.Duration `json:"avg_response_time"`
	LastLatency          time.Duration `json:"last_latency"`
	LastSuccess          time.Time     `json:"last_success"`
	LastFailure          time.Time     `json:"last_failure"`
	ConsecutiveFailures  int           `json:"consecutive_failures"`
	ConsecutiveSuccesses int           `json:"consecutive_successes"`
	TotalChecks          int64         `json:"total_checks"`
}

// StatusChange describes a transition between two health states.
type StatusChange struct {
	Old      Status
	New      Status
	Snapshot Snapshot
}
