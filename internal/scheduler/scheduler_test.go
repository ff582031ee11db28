package scheduler_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazz-dev/marinemon/internal/coordinator"
	"github.com/hazz-dev/marinemon/internal/health"
	"github.com/hazz-dev/marinemon/internal/openmeteo"
	"github.com/hazz-dev/marinemon/internal/scheduler"
	"github.com/hazz-dev/marinemon/internal/storage"
)

// mockStore records inserted fetch records.
type mockStore struct {
	mu      sync.Mutex
	fetches []storage.Fetch
}

func (m *mockStore) InsertFetch(_ context.Context, f storage.Fetch) error {
	m.mu.Lock()
	m.fetches = append(m.fetches, f)
	m.mu.Unlock()
	return nil
}

func (m *mockStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fetches)
}

// staticMonitor always reports one fixed status.
type staticMonitor struct {
	status health.Status
}

func (s *staticMonitor) Status() health.Status { return s.status }
func (s *staticMonitor) Record(health.Outcome) {}

func makeCoordinator(name string, fetch coordinator.FetchFunc, status health.Status) *coordinator.Coordinator {
	return coordinator.New(name, fetch, &staticMonitor{status: status}, time.Second, nil)
}

func okFetch(ctx context.Context) (*openmeteo.CurrentMarine, error) {
	h := 1.0
	return &openmeteo.CurrentMarine{SwellWaveHeight: &h}, nil
}

func TestScheduler_RunsFetchImmediately(t *testing.T) {
	store := &mockStore{}
	c := makeCoordinator("Kings Beach", okFetch, health.StatusHealthy)
	sched := scheduler.New([]*coordinator.Coordinator{c}, store, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if store.count() >= 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if store.count() < 1 {
		t.Error("expected at least one fetch to run immediately")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	f := store.fetches[0]
	if f.Location != "Kings Beach" {
		t.Errorf("unexpected location %q", f.Location)
	}
	if f.Source != "fresh" {
		t.Errorf("expected fresh source, got %q", f.Source)
	}
}

func TestScheduler_RunsPeriodicFetches(t *testing.T) {
	store := &mockStore{}
	c := makeCoordinator("Kings Beach", okFetch, health.StatusHealthy)
	sched := scheduler.New([]*coordinator.Coordinator{c}, store, 50*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	sched.Start(ctx)
	<-ctx.Done()
	sched.Wait()

	if n := store.count(); n < 3 {
		t.Errorf("expected at least 3 fetches in 300ms, got %d", n)
	}
}

func TestScheduler_OneGoroutinePerLocation(t *testing.T) {
	store := &mockStore{}
	coords := []*coordinator.Coordinator{
		makeCoordinator("Kings Beach", okFetch, health.StatusHealthy),
		makeCoordinator("Moffat Beach", okFetch, health.StatusHealthy),
	}
	sched := scheduler.New(coords, store, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if store.count() >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	sched.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	seen := map[string]bool{}
	for _, f := range store.fetches {
		seen[f.Location] = true
	}
	if !seen["Kings Beach"] || !seen["Moffat Beach"] {
		t.Errorf("expected fetches for both locations, got %v", seen)
	}
}

func TestScheduler_RecordsErrors(t *testing.T) {
	store := &mockStore{}
	// Unhealthy monitor and empty cache: every cycle yields ErrUnavailable.
	c := makeCoordinator("Kings Beach", okFetch, health.StatusUnhealthy)
	sched := scheduler.New([]*coordinator.Coordinator{c}, store, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if store.count() >= 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.fetches) == 0 {
		t.Fatal("expected an error record")
	}
	if store.fetches[0].Source != "error" {
		t.Errorf("expected source 'error', got %q", store.fetches[0].Source)
	}
	if store.fetches[0].Error == "" {
		t.Error("expected error message to be recorded")
	}
}

func TestScheduler_OnResultCallback(t *testing.T) {
	store := &mockStore{}
	c := makeCoordinator("Kings Beach", okFetch, health.StatusHealthy)
	sched := scheduler.New([]*coordinator.Coordinator{c}, store, time.Hour, nil)

	var callCount int32
	sched.SetOnResult(func(location string, result *coordinator.Result, err error) {
		atomic.AddInt32(&callCount, 1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&callCount) >= 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	sched.Wait()

	if atomic.LoadInt32(&callCount) < 1 {
		t.Error("expected onResult callback to fire")
	}
}

func TestScheduler_ContextCancellation(t *testing.T) {
	store := &mockStore{}
	c := makeCoordinator("Kings Beach", okFetch, health.StatusHealthy)
	sched := scheduler.New([]*coordinator.Coordinator{c}, store, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)

	time.Sleep(50 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		sched.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Wait() did not return within 2s after context cancel")
	}
}
