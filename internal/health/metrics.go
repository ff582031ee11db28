package health

import "time"

// metricsStore holds the rolling outcome window and hysteresis counters.
// It is not safe for concurrent use; the Monitor serializes all access.
type metricsStore struct {
	window []Outcome // ring buffer, oldest evicted when full
	size   int

	consecutiveFailures  int
	consecutiveSuccesses int
	totalChecks          int64
	lastSuccess          time.Time
	lastFailure          time.Time
}

func newMetricsStore(windowSize int) *metricsStore {
	return &metricsStore{size: windowSize}
}

// record appends an outcome, evicting the oldest entry once the window is
// full. The hysteresis counters are maintained independently of the window:
// an outcome of one polarity zeroes the counter of the other, so the two are
// never simultaneously nonzero.
func (m *metricsStore) record(o Outcome) {
	if len(m.window) == m.size {
		copy(m.window, m.window[1:])
		m.window[len(m.window)-1] = o
	} else {
		m.window = append(m.window, o)
	}

	m.totalChecks++
	if o.Succeeded {
		m.consecutiveSuccesses++
		m.consecutiveFailures = 0
		m.lastSuccess = o.ObservedAt
	} else {
		m.consecutiveFailures++
		m.consecutiveSuccesses = 0
		m.lastFailure = o.ObservedAt
	}
}

// snapshot builds a derived view over the current window. The Status field
// is left as StatusUnknown; the Monitor stamps its current status in.
func (m *metricsStore) snapshot() Snapshot {
	s := Snapshot{
		Status:               StatusUnknown,
		ConsecutiveFailures:  m.consecutiveFailures,
		ConsecutiveSuccesses: m.consecutiveSuccesses,
		TotalChecks:          m.totalChecks,
		LastSuccess:          m.lastSuccess,
		LastFailure:          m.lastFailure,
	}
	if len(m.window) == 0 {
		return s
	}

	var succeeded int
	var totalLatency time.Duration
	for _, o := range m.window {
		if o.Succeeded {
			succeeded++
		}
		totalLatency += o.Latency
	}
	s.SuccessRate = float64(succeeded) / float64(len(m.window)) * 100
	s.AvgResponseTime = totalLatency / time.Duration(len(m.window))
	s.LastLatency = m.window[len(m.window)-1].Latency
	return s
}

// last returns the most recently recorded outcome, or false if none exists.
func (m *metricsStore) last() (Outcome, bool) {
	if len(m.window) == 0 {
		return Outcome{}, false
	}
	return m.window[len(m.window)-1], true
}

// reset clears all state back to the no-data condition.
func (m *metricsStore) reset() {
	m.window = m.window[:0]
	m.consecutiveFailures = 0
	m.consecutiveSuccesses = 0
	m.totalChecks = 0
	m.lastSuccess = time.Time{}
	m.lastFailure = time.Time{}
}
