package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazz-dev/marinemon/internal/health"
	"github.com/hazz-dev/marinemon/internal/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertFetch(t *testing.T, db *storage.DB, location, source string, at time.Time) {
	t.Helper()
	err := db.InsertFetch(context.Background(), storage.Fetch{
		Location:   location,
		Source:     source,
		ResponseMs: 120,
		FetchedAt:  at,
	})
	if err != nil {
		t.Fatalf("inserting fetch: %v", err)
	}
}

func TestInsertAndLatestFetch(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	insertFetch(t, db, "Kings Beach", "fresh", now.Add(-time.Hour))
	insertFetch(t, db, "Kings Beach", "stale", now)

	latest, err := db.LatestFetch(context.Background(), "Kings Beach")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest == nil {
		t.Fatal("expected a fetch record")
	}
	if latest.Source != "stale" {
		t.Errorf("expected latest source 'stale', got %q", latest.Source)
	}
	if latest.ResponseMs != 120 {
		t.Errorf("unexpected response ms: %d", latest.ResponseMs)
	}
	if latest.FetchedAt.Unix() != now.Unix() {
		t.Errorf("unexpected fetched_at: %v vs %v", latest.FetchedAt, now)
	}
}

func TestLatestFetch_NoRows(t *testing.T) {
	db := openTestDB(t)
	latest, err := db.LatestFetch(context.Background(), "Nowhere")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest != nil {
		t.Errorf("expected nil for unknown location, got %+v", latest)
	}
}

func TestInsertFetch_InvalidSource(t *testing.T) {
	db := openTestDB(t)
	err := db.InsertFetch(context.Background(), storage.Fetch{
		Location:  "Kings Beach",
		Source:    "bogus",
		FetchedAt: time.Now(),
	})
	if err == nil {
		t.Error("expected CHECK constraint error for invalid source")
	}
}

func TestLocationHistory(t *testing.T) {
	db := openTestDB(t)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		insertFetch(t, db, "Kings Beach", "fresh", base.Add(time.Duration(i)*time.Minute))
	}
	insertFetch(t, db, "Moffat Beach", "fresh", base)

	fetches, total, err := db.LocationHistory(context.Background(), "Kings Beach", 3, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}
	if len(fetches) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(fetches))
	}
	// Newest first.
	if fetches[0].FetchedAt.Before(fetches[1].FetchedAt) {
		t.Error("history should be ordered newest first")
	}

	fetches, _, err = db.LocationHistory(context.Background(), "Kings Beach", 3, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fetches) != 2 {
		t.Errorf("expected 2 rows at offset 3, got %d", len(fetches))
	}
}

func TestAllLatest(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	insertFetch(t, db, "Kings Beach", "fresh", now.Add(-2*time.Minute))
	insertFetch(t, db, "Kings Beach", "stale", now)
	insertFetch(t, db, "Moffat Beach", "fresh", now)

	latest, err := db.AllLatest(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("expected 2 locations, got %d", len(latest))
	}
	byLoc := map[string]string{}
	for _, f := range latest {
		byLoc[f.Location] = f.Source
	}
	if byLoc["Kings Beach"] != "stale" {
		t.Errorf("expected latest 'stale' for Kings Beach, got %q", byLoc["Kings Beach"])
	}
}

func TestFreshRatePercent(t *testing.T) {
	db := openTestDB(t)
	base := time.Now().Add(-time.Hour)

	sources := []string{"fresh", "fresh", "fresh", "stale", "error"}
	for i, src := range sources {
		insertFetch(t, db, "Kings Beach", src, base.Add(time.Duration(i)*time.Minute))
	}

	pct, err := db.FreshRatePercent(context.Background(), "Kings Beach", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pct != 60 {
		t.Errorf("expected 60%% fresh, got %v", pct)
	}

	pct, err = db.FreshRatePercent(context.Background(), "Nowhere", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pct != 0 {
		t.Errorf("expected 0%% for no history, got %v", pct)
	}
}

func TestHealthEvents(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	changes := []health.StatusChange{
		{Old: health.StatusUnknown, New: health.StatusHealthy},
		{Old: health.StatusHealthy, New: health.StatusDegraded},
		{Old: health.StatusDegraded, New: health.StatusUnhealthy},
	}
	for i, c := range changes {
		if err := db.InsertHealthEvent(context.Background(), c, now.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("inserting event: %v", err)
		}
	}

	events, err := db.RecentHealthEvents(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].NewStatus != "unhealthy" {
		t.Errorf("expected newest event first, got %q", events[0].NewStatus)
	}
	if events[1].OldStatus != "healthy" || events[1].NewStatus != "degraded" {
		t.Errorf("unexpected second event: %+v", events[1])
	}
}
