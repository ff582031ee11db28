package health

import "time"

// Thresholds control the transitions of the health state machine.
type Thresholds struct {
	// FailureThreshold is the number of consecutive failures that forces
	// StatusUnhealthy.
	FailureThreshold int
	// RecoveryThreshold is the streak of consecutive successes required to
	// leave StatusUnhealthy.
	RecoveryThreshold int
	// DegradedLatency is the latency above which a responding API is
	// considered degraded.
	DegradedLatency time.Duration
	// DegradedSuccessRate is the success-rate floor (percent) below which a
	// responding API is considered degraded.
	DegradedSuccessRate float64
}

// DefaultThresholds returns the thresholds used when none are configured.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FailureThreshold:    3,
		RecoveryThreshold:   2,
		DegradedLatency:     2 * time.Second,
		DegradedSuccessRate: 90,
	}
}

// Evaluate maps the previous status and the current metrics to a new status.
// It is a pure function; all history it needs is in the snapshot.
//
// Entry into StatusUnhealthy is sticky: once the failure threshold is hit,
// only a full recovery streak exits it, so a single good probe after a
// failure burst does not flap the state back to healthy.
func Evaluate(prev Status, snap Snapshot, th Thresholds) Status {
	if snap.TotalChecks == 0 {
		return StatusUnknown
	}
	if snap.ConsecutiveFailures >= th.FailureThreshold {
		return StatusUnhealthy
	}
	if prev == StatusUnhealthy && snap.ConsecutiveSuccesses < th.RecoveryThreshold {
		return StatusUnhealthy
	}
	if snap.ConsecutiveSuccesses >= th.RecoveryThreshold {
		return StatusHealthy
	}
	if snap.ConsecutiveFailures > 0 ||
		snap.LastLatency > th.DegradedLatency ||
		snap.SuccessRate < th.DegradedSuccessRate {
		return StatusDegraded
	}
	return StatusHealthy
}
