package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hazz-dev/marinemon/internal/coordinator"
	"github.com/hazz-dev/marinemon/internal/storage"
)

// Store defines the storage operations required by the scheduler.
type Store interface {
	InsertFetch(ctx context.Context, f storage.Fetch) error
}

// Scheduler polls each location's coordinator in its own goroutine.
type Scheduler struct {
	coordinators []*coordinator.Coordinator
	store        Store
	interval     time.Duration
	onResult     func(location string, result *coordinator.Result, err error)
	logger       *slog.Logger
	wg           sync.WaitGroup
}

// New creates a new Scheduler. Pass nil logger to use the default logger.
func New(coordinators []*coordinator.Coordinator, store Store, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		coordinators: coordinators,
		store:        store,
		interval:     interval,
		logger:       logger,
	}
}

// SetOnResult sets the callback invoked after each fetch cycle.
func (s *Scheduler) SetOnResult(fn func(location string, result *coordinator.Result, err error)) {
	s.onResult = fn
}

// Start spawns one goroutine per location. It is non-blocking.
func (s *Scheduler) Start(ctx context.Context) {
	for _, c := range s.coordinators {
		s.wg.Add(1)
		go s.runLocation(ctx, c)
	}
}

// Wait blocks until all location goroutines have exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runLocation(ctx context.Context, c *coordinator.Coordinator) {
	defer s.wg.Done()

	// Run immediately.
	s.runFetch(ctx, c)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runFetch(ctx, c)
		}
	}
}

// runFetch performs one fetch cycle for a location. Failures are stored and
// logged, never fatal; the next cycle retries implicitly.
func (s *Scheduler) runFetch(ctx context.Context, c *coordinator.Coordinator) {
	start := time.Now()
	result, err := c.Fetch(ctx)
	elapsed := time.Since(start)

	record := storage.Fetch{
		Location:   c.Location(),
		ResponseMs: elapsed.Milliseconds(),
		FetchedAt:  start,
	}
	if err != nil {
		record.Source = "error"
		record.Error = err.Error()
		s.logger.Error("fetch failed",
			"location", c.Location(),
			"error", err,
		)
	} else {
		record.Source = string(result.Source)
		s.logger.Info("fetch complete",
			"location", c.Location(),
			"source", result.Source,
			"response_time", elapsed,
		)
	}

	if err := s.store.InsertFetch(ctx, record); err != nil {
		s.logger.Error("storing fetch record", "location", c.Location(), "error", err)
	}

	if s.onResult != nil {
		s.onResult(c.Location(), result, err)
	}
}
