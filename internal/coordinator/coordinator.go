// Package coordinator gates upstream data fetches on the API health state.
// When the upstream is unhealthy it stops hammering the failing API and
// serves the last good result instead, degrading gracefully rather than
// failing hard.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazz-dev/marinemon/internal/health"
	"github.com/hazz-dev/marinemon/internal/openmeteo"
)

// Source describes where a fetch result came from.
type Source string

const (
	// SourceFresh is a result straight from the upstream API.
	SourceFresh Source = "fresh"
	// SourceCache is a cached result served because the upstream is
	// unhealthy and no fetch was attempted.
	SourceCache Source = "cache"
	// SourceStale is a cached result served after a fetch attempt failed.
	SourceStale Source = "stale"
)

// ErrUnavailable is returned when no fetch is attempted (upstream unhealthy)
// and no cached result exists to fall back on.
var ErrUnavailable = errors.New("upstream unhealthy and no cached result available")

// FetchError wraps the underlying cause of a failed fetch with no fallback.
type FetchError struct {
	Location string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Location, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Result is a fetch outcome handed to downstream consumers. Consumers see
// either fresh data, cached data labeled as such, or an error, never a
// silent empty value.
type Result struct {
	Data      *openmeteo.CurrentMarine
	FetchedAt time.Time
	Source    Source
}

// FetchFunc performs one real upstream fetch for the coordinator's location.
type FetchFunc func(ctx context.Context) (*openmeteo.CurrentMarine, error)

// HealthReporter is the slice of the health monitor the coordinator needs:
// the gating decision and the metrics feedback path.
type HealthReporter interface {
	Status() health.Status
	Record(health.Outcome)
}

// Coordinator wraps the real data fetch for a single location. It owns the
// cached last-good result; nothing else mutates it.
type Coordinator struct {
	location string
	fetch    FetchFunc
	monitor  HealthReporter
	timeout  time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cached *Result
}

// New creates a Coordinator. Pass nil logger to use the default logger.
func New(location string, fetch FetchFunc, monitor HealthReporter, timeout time.Duration, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Coordinator{
		location: location,
		fetch:    fetch,
		monitor:  monitor,
		timeout:  timeout,
		logger:   logger,
	}
}

// Fetch returns current data for the coordinator's location. While the
// upstream is unhealthy no network call is made at all; otherwise the fetch
// outcome is reported back into the health metrics so real traffic shapes
// the health state alongside dedicated probes.
func (c *Coordinator) Fetch(ctx context.Context) (*Result, error) {
	if c.monitor.Status() == health.StatusUnhealthy {
		if cached := c.last(); cached != nil {
			c.logger.Warn("upstream unhealthy, serving cached result",
				"location", c.location,
				"fetched_at", cached.FetchedAt,
			)
			return cached, nil
		}
		return nil, ErrUnavailable
	}

	fctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	data, err := c.fetch(fctx)
	latency := time.Since(start)

	outcome := health.Outcome{
		Succeeded:  err == nil,
		Latency:    latency,
		ObservedAt: start,
	}
	if err != nil {
		outcome.ErrorReason = err.Error()
	}
	c.monitor.Record(outcome)

	if err != nil {
		if cached := c.last(); cached != nil {
			c.logger.Warn("fetch failed, serving stale result",
				"location", c.location,
				"error", err,
				"fetched_at", cached.FetchedAt,
			)
			stale := *cached
			stale.Source = SourceStale
			return &stale, nil
		}
		return nil, &FetchError{Location: c.location, Err: err}
	}

	result := &Result{Data: data, FetchedAt: start, Source: SourceFresh}
	c.mu.Lock()
	c.cached = result
	c.mu.Unlock()
	return result, nil
}

// Last returns the cached last-good result, or nil if none exists. The
// returned value is a copy; staleness is judged by FetchedAt, the cache
// itself never expires.
func (c *Coordinator) Last() *Result {
	return c.last()
}

// Location returns the location name this coordinator serves.
func (c *Coordinator) Location() string {
	return c.location
}

// last returns a copy of the cache tagged as cache-served.
func (c *Coordinator) last() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached == nil {
		return nil
	}
	out := *c.cached
	out.Source = SourceCache
	return &out
}
