// Package ledger records split runs in a SQLite database
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/james-see/handsplit/pkg/splitter"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS split_runs (
	run_id        TEXT NOT NULL,
	source        TEXT NOT NULL,
	variant       TEXT NOT NULL,
	output_path   TEXT NOT NULL,
	meta_events   INTEGER NOT NULL,
	right_events  INTEGER NOT NULL,
	left_events   INTEGER NOT NULL,
	centroid_low  REAL,
	centroid_high REAL,
	created_at    TEXT NOT NULL,
	PRIMARY KEY (run_id, variant)
);
CREATE INDEX IF NOT EXISTS idx_split_runs_created ON split_runs(created_at);
`

// Entry is one written split variant
type Entry struct {
	RunID        string
	Source       string
	Variant      string
	OutputPath   string
	MetaEvents   int
	RightEvents  int
	LeftEvents   int
	CentroidLow  *float64 // nil when the source had no onsets
	CentroidHigh *float64
	CreatedAt    time.Time
}

// FromSplit returns one entry per variant written for fr, sharing a new run id
func FromSplit(fr *splitter.FileResult) []Entry {
	runID := NewRunID()
	now := time.Now().UTC()

	var low, high *float64
	if c := fr.Result.Centroids; c != nil {
		low, high = &c.Low, &c.High
	}

	entries := make([]Entry, 0, 2)
	for _, out := range fr.Result.Outputs() {
		entries = append(entries, Entry{
			RunID:        runID,
			Source:       fr.Source,
			Variant:      string(out.Variant),
			OutputPath:   fr.Path(out.Variant),
			MetaEvents:   out.Stats.Meta,
			RightEvents:  out.Stats.Right,
			LeftEvents:   out.Stats.Left,
			CentroidLow:  low,
			CentroidHigh: high,
			CreatedAt:    now,
		})
	}
	return entries
}

// Ledger stores split history in SQLite
type Ledger struct {
	db *sql.DB
}

// NewRunID returns an identifier shared by the variants of one split
func NewRunID() string {
	return uuid.New().String()
}

// Open opens (creating if needed) the ledger database at path and runs migrations.
// Use ":memory:" for a throwaway ledger.
func Open(path string) (*Ledger, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// each connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the underlying database connection
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record inserts e. Empty RunID and zero CreatedAt are filled in.
func (l *Ledger) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.RunID == "" {
		e.RunID = NewRunID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO split_runs (run_id, source, variant, output_path, meta_events, right_events, left_events, centroid_low, centroid_high, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID,
		e.Source,
		e.Variant,
		e.OutputPath,
		e.MetaEvents,
		e.RightEvents,
		e.LeftEvents,
		nullFloat(e.CentroidLow),
		nullFloat(e.CentroidHigh),
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("record split: %w", err)
	}
	return e, nil
}

// List returns the most recent entries first. limit <= 0 means no limit.
func (l *Ledger) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT run_id, source, variant, output_path, meta_events, right_events, left_events, centroid_low, centroid_high, created_at
		 FROM split_runs ORDER BY created_at DESC, run_id, variant LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list splits: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var low, high sql.NullFloat64
		var created string
		if err := rows.Scan(&e.RunID, &e.Source, &e.Variant, &e.OutputPath,
			&e.MetaEvents, &e.RightEvents, &e.LeftEvents, &low, &high, &created); err != nil {
			return nil, fmt.Errorf("scan split: %w", err)
		}
		if low.Valid {
			e.CentroidLow = &low.Float64
		}
		if high.Valid {
			e.CentroidHigh = &high.Float64
		}
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}
