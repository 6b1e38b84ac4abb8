package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// History records completed runs in sqlite so the viewer and CI tooling can
// query past results. Writes are non-fatal: a failing history store never
// blocks the pipeline.
type History struct {
	db     *sql.DB
	logger *slog.Logger
}

const historySchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	generated_at INTEGER NOT NULL,
	new_count    INTEGER NOT NULL,
	diff_count   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS run_images (
	run_id      TEXT NOT NULL,
	description TEXT NOT NULL,
	viewport    TEXT NOT NULL,
	status      TEXT NOT NULL,
	height      INTEGER NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
CREATE INDEX IF NOT EXISTS idx_run_images_run ON run_images(run_id);
`

// OpenHistory opens (and if needed initialises) the run-history database.
// The caller imports the sqlite driver.
func OpenHistory(path string, logger *slog.Logger) (*History, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: schema: %w", err)
	}
	return &History{db: db, logger: logger}, nil
}

// Record writes one run and its non-equal outcomes. Errors are logged, not
// returned.
func (h *History) Record(ctx context.Context, runID string, generatedAt time.Time, outcomes []Outcome) {
	var newCount, diffCount int
	for _, o := range outcomes {
		switch o.Status {
		case StatusNew:
			newCount++
		case StatusDiff:
			diffCount++
		}
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		h.logger.Error("history: begin failed", "error", err, "run_id", runID)
		return
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, generated_at, new_count, diff_count) VALUES (?,?,?,?)`,
		runID, generatedAt.Unix(), newCount, diffCount)
	if err != nil {
		h.logger.Error("history: insert run failed", "error", err, "run_id", runID)
		return
	}

	for _, o := range outcomes {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_images (run_id, description, viewport, status, height) VALUES (?,?,?,?,?)`,
			runID, o.Description, o.Viewport, o.Status, o.Height)
		if err != nil {
			h.logger.Error("history: insert image failed", "error", err, "run_id", runID)
			return
		}
	}

	if err := tx.Commit(); err != nil {
		h.logger.Error("history: commit failed", "error", err, "run_id", runID)
	}
}

// RunRecord is one row of the runs table.
type RunRecord struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	NewCount    int       `json:"new_count"`
	DiffCount   int       `json:"diff_count"`
}

// Runs returns the most recent runs, newest first.
func (h *History) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT run_id, generated_at, new_count, diff_count FROM runs ORDER BY generated_at DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("history: query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var ts int64
		if err := rows.Scan(&r.RunID, &ts, &r.NewCount, &r.DiffCount); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		r.GeneratedAt = time.Unix(ts, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (h *History) Close() error { return h.db.Close() }
