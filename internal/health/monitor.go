package health

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Prober performs one lightweight upstream check. A nil error means the
// upstream responded correctly; any transport, status, or parse failure is
// returned as the error.
type Prober interface {
	Probe(ctx context.Context) error
}

// Options configure a Monitor. Zero values fall back to defaults.
type Options struct {
	Interval   time.Duration // probe cadence, default 5m
	Timeout    time.Duration // per-probe timeout, default 10s
	WindowSize int           // rolling outcome window, default 50
	Thresholds Thresholds    // zero value means DefaultThresholds
}

const (
	defaultInterval   = 5 * time.Minute
	defaultTimeout    = 10 * time.Second
	defaultWindowSize = 50
)

// Monitor owns the health metrics for the upstream API. It probes on a
// fixed schedule, folds in outcomes reported from real data fetches, derives
// the current Status through the evaluator, and notifies listeners of
// transitions.
//
// All metric mutation is serialized behind one mutex; listener dispatch runs
// outside it so a slow listener never blocks the next state update.
type Monitor struct {
	prober     Prober
	interval   time.Duration
	timeout    time.Duration
	thresholds Thresholds
	logger     *slog.Logger

	mu              sync.Mutex
	store           *metricsStore
	status          Status
	statusListeners []func(StatusChange)
	manualListeners []func(Snapshot)
	pending         []func()

	dispatchMu sync.Mutex

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewMonitor creates a Monitor for the given prober. Pass nil logger to use
// the default logger. Start must be called to begin scheduled probing.
func NewMonitor(prober Prober, opts Options, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.WindowSize <= 0 {
		opts.WindowSize = defaultWindowSize
	}
	if opts.Thresholds == (Thresholds{}) {
		opts.Thresholds = DefaultThresholds()
	}
	return &Monitor{
		prober:     prober,
		interval:   opts.Interval,
		timeout:    opts.Timeout,
		thresholds: opts.Thresholds,
		logger:     logger,
		store:      newMetricsStore(opts.WindowSize),
		status:     StatusUnknown,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins the probe schedule. The first probe runs immediately. The
// loop stops when ctx is canceled or Shutdown is called. Start is
// non-blocking.
func (m *Monitor) Start(ctx context.Context) {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(m.done)

		m.probeOnce(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				m.probeOnce(ctx)
			}
		}
	}()
}

// Shutdown stops the probe schedule and waits for the loop to exit. It is
// idempotent; calls after the first are no-ops.
func (m *Monitor) Shutdown() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	if m.started.Load() {
		<-m.done
	}
}

// Status returns the current health status without blocking writers beyond
// the lock acquisition.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// CurrentSnapshot returns the current aggregated metrics.
func (m *Monitor) CurrentSnapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.store.snapshot()
	snap.Status = m.status
	return snap
}

// OnStatusChange registers a listener invoked on every status transition.
// Listeners run synchronously in registration order, after the new status
// has been committed, outside the state lock. Transitions are delivered in
// the order they occur. A listener may read Status or CurrentSnapshot, but
// must not call Record or TriggerManualCheck: dispatch is not reentrant and
// doing so deadlocks.
func (m *Monitor) OnStatusChange(fn func(StatusChange)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusListeners = append(m.statusListeners, fn)
}

// OnManualCheck registers a listener invoked after every manual check, with
// the snapshot the check produced. When a manual check also causes a status
// transition, the manual-check notification is delivered first. The same
// reentrancy rule as OnStatusChange applies.
func (m *Monitor) OnManualCheck(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manualListeners = append(m.manualListeners, fn)
}

// Record folds an outcome from real traffic into the same metrics and
// evaluation path as a scheduled probe, so data-fetch failures and successes
// influence health alongside dedicated probes.
func (m *Monitor) Record(o Outcome) {
	m.mu.Lock()
	m.recordLocked(o)
	m.mu.Unlock()
	m.flush()
}

// TriggerManualCheck performs one probe immediately, outside the regular
// schedule, updating state exactly as a scheduled probe would. It fires a
// manual-check notification, then any status-change notification, and
// returns the resulting snapshot. The regular timer is unaffected.
func (m *Monitor) TriggerManualCheck(ctx context.Context) Snapshot {
	o := m.runProbe(ctx)

	m.mu.Lock()
	// Reserve the queue slot before recording so the manual notification
	// dispatches ahead of any transition caused by the same probe.
	idx := len(m.pending)
	m.pending = append(m.pending, nil)
	snap := m.recordLocked(o)
	listeners := append([]func(Snapshot){}, m.manualListeners...)
	m.pending[idx] = func() {
		for _, fn := range listeners {
			fn(snap)
		}
	}
	m.mu.Unlock()
	m.flush()
	return snap
}

// Reset clears all metrics back to the no-data condition and returns the
// status to StatusUnknown. No notification is emitted.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store.reset()
	m.status = StatusUnknown
}

func (m *Monitor) probeOnce(ctx context.Context) {
	o := m.runProbe(ctx)
	m.logger.Info("health probe",
		"succeeded", o.Succeeded,
		"latency", o.Latency,
		"error", o.ErrorReason,
	)
	m.Record(o)
}

// runProbe executes the prober under the configured timeout and converts
// the result into an Outcome. Probe errors are captured, never propagated:
// the schedule continues unconditionally.
func (m *Monitor) runProbe(ctx context.Context) Outcome {
	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	err := m.prober.Probe(pctx)
	o := Outcome{
		Succeeded:  err == nil,
		Latency:    time.Since(start),
		ObservedAt: start,
	}
	if err != nil {
		o.ErrorReason = err.Error()
	}
	return o
}

// recordLocked records the outcome, re-evaluates the status, and queues any
// transition for dispatch. Caller must hold m.mu. The returned snapshot
// carries the post-evaluation status.
func (m *Monitor) recordLocked(o Outcome) Snapshot {
	m.store.record(o)
	snap := m.store.snapshot()
	newStatus := Evaluate(m.status, snap, m.thresholds)
	snap.Status = newStatus

	if newStatus != m.status {
		change := StatusChange{Old: m.status, New: newStatus, Snapshot: snap}
		listeners := append([]func(StatusChange){}, m.statusListeners...)
		m.pending = append(m.pending, func() {
			for _, fn := range listeners {
				fn(change)
			}
		})
		m.status = newStatus
	}
	return snap
}

// flush drains queued notifications in order. The dispatch mutex keeps
// concurrent flushers from interleaving transitions.
func (m *Monitor) flush() {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()
	for {
		m.mu.Lock()
		if len(m.pending) == 0 {
			m.mu.Unlock()
			return
		}
		next := m.pending[0]
		m.pending = m.pending[1:]
		m.mu.Unlock()
		next()
	}
}
