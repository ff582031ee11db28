package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazz-dev/marinemon/internal/health"
)

const schema = `
CREATE TABLE IF NOT EXISTS fetches (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    location    TEXT    NOT NULL,
    source      TEXT    NOT NULL CHECK(source IN ('fresh', 'cache', 'stale', 'error')),
    response_ms INTEGER NOT NULL,
    error       TEXT    NOT NULL DEFAULT '',
    fetched_at  TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fetches_location ON fetches(location);
CREATE INDEX IF NOT EXISTS idx_fetches_fetched_at ON fetches(fetched_at DESC);
CREATE INDEX IF NOT EXISTS idx_fetches_location_fetched ON fetches(location, fetched_at DESC);

CREATE TABLE IF NOT EXISTS health_events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    old_status  TEXT    NOT NULL,
    new_status  TEXT    NOT NULL,
    occurred_at TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_health_events_occurred ON health_events(occurred_at DESC);
`

// Fetch is a stored fetch record.
type Fetch struct {
	ID         int64
	Location   string
	Source     string
	ResponseMs int64
	Error      string
	FetchedAt  time.Time
}

// HealthEvent is a stored health status transition.
type HealthEvent struct {
	ID         int64
	OldStatus  string
	NewStatus  string
	OccurredAt time.Time
}

// DB wraps a SQLite database.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %q: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// InsertFetch persists a fetch record.
func (d *DB) InsertFetch(ctx context.Context, f Fetch) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO fetches (location, source, response_ms, error, fetched_at) VALUES (?, ?, ?, ?, ?)`,
		f.Location,
		f.Source,
		f.ResponseMs,
		f.Error,
		f.FetchedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting fetch for %q: %w", f.Location, err)
	}
	return nil
}

// LatestFetch returns the most recent fetch for the given location, or nil
// if none.
func (d *DB) LatestFetch(ctx context.Context, location string) (*Fetch, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, location, source, response_ms, error, fetched_at FROM fetches WHERE location = ? ORDER BY fetched_at DESC LIMIT 1`,
		location,
	)
	f, err := scanFetch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest fetch for %q: %w", location, err)
	}
	return f, nil
}

// LocationHistory returns paginated fetch history for a location plus the
// total count.
func (d *DB) LocationHistory(ctx context.Context, location string, limit, offset int) ([]Fetch, int, error) {
	var total int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM fetches WHERE location = ?`, location,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting fetches for %q: %w", location, err)
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, location, source, response_ms, error, fetched_at FROM fetches WHERE location = ? ORDER BY fetched_at DESC LIMIT ? OFFSET ?`,
		location, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying history for %q: %w", location, err)
	}
	defer rows.Close()

	fetches, err := scanFetches(rows)
	if err != nil {
		return nil, 0, err
	}
	return fetches, total, nil
}

// AllLatest returns the most recent fetch for each location.
func (d *DB) AllLatest(ctx context.Context) ([]Fetch, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, location, source, response_ms, error, fetched_at
		FROM fetches
		WHERE id IN (
			SELECT MAX(id) FROM fetches GROUP BY location
		)
		ORDER BY location
	`)
	if err != nil {
		return nil, fmt.Errorf("querying all latest: %w", err)
	}
	defer rows.Close()
	return scanFetches(rows)
}

// FreshRatePercent returns the percentage of fresh results in the last N
// fetches for a location.
func (d *DB) FreshRatePercent(ctx context.Context, location string, last int) (float64, error) {
	var total int
	var freshCount sql.NullInt64
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(CASE WHEN source = 'fresh' THEN 1 ELSE 0 END)
		FROM (
			SELECT source FROM fetches WHERE location = ? ORDER BY fetched_at DESC LIMIT ?
		)
	`, location, last).Scan(&total, &freshCount)
	if err != nil {
		return 0, fmt.Errorf("calculating fresh rate for %q: %w", location, err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(freshCount.Int64) / float64(total) * 100, nil
}

// InsertHealthEvent persists a health status transition.
func (d *DB) InsertHealthEvent(ctx context.Context, change health.StatusChange, occurredAt time.Time) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO health_events (old_status, new_status, occurred_at) VALUES (?, ?, ?)`,
		string(change.Old),
		string(change.New),
		occurredAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting health event %s->%s: %w", change.Old, change.New, err)
	}
	return nil
}

// RecentHealthEvents returns up to limit most recent health transitions.
func (d *DB) RecentHealthEvents(ctx context.Context, limit int) ([]HealthEvent, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, old_status, new_status, occurred_at FROM health_events ORDER BY occurred_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying health events: %w", err)
	}
	defer rows.Close()

	var events []HealthEvent
	for rows.Next() {
		var e HealthEvent
		var occurredAt string
		if err := rows.Scan(&e.ID, &e.OldStatus, &e.NewStatus, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning health event row: %w", err)
		}
		t, err := parseStoredTime(occurredAt)
		if err != nil {
			return nil, err
		}
		e.OccurredAt = t
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating health event rows: %w", err)
	}
	return events, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFetch(row scanner) (*Fetch, error) {
	var f Fetch
	var fetchedAt string
	err := row.Scan(&f.ID, &f.Location, &f.Source, &f.ResponseMs, &f.Error, &fetchedAt)
	if err != nil {
		return nil, err
	}
	t, err := parseStoredTime(fetchedAt)
	if err != nil {
		return nil, err
	}
	f.FetchedAt = t
	return &f, nil
}

func scanFetches(rows *sql.Rows) ([]Fetch, error) {
	var fetches []Fetch
	for rows.Next() {
		f, err := scanFetch(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning fetch row: %w", err)
		}
		fetches = append(fetches, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fetch rows: %w", err)
	}
	return fetches, nil
}

func parseStoredTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		// Fallback to RFC3339 without sub-second precision.
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing stored timestamp %q: %w", s, err)
		}
	}
	return t, nil
}
