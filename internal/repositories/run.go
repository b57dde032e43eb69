package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/discog/internal/models"
)

// RunRepository records reconciliation runs in SQLite.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new [RunRepository] with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// RecordRun inserts or replaces run.
func (r *RunRepository) RecordRun(run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	var finished sql.NullTime
	if !run.FinishedAt.IsZero() {
		finished = sql.NullTime{Time: run.FinishedAt, Valid: true}
	}

	_, err := r.db.Exec(`
		INSERT OR REPLACE INTO sync_runs (id, playlist, action, artists, expected, observed, mismatch, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Playlist, run.Action, strings.Join(run.Artists, ","), run.Expected, run.Observed, run.Mismatch,
		run.Error, run.StartedAt, finished)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first. An empty playlist matches every playlist.
func (r *RunRepository) List(playlist string, limit int) ([]*models.SyncRun, error) {
	query := `
		SELECT id, playlist, action, artists, expected, observed, mismatch, error, started_at, finished_at
		FROM sync_runs
	`
	args := []any{}

	if playlist != "" {
		query += " WHERE playlist = ?"
		args = append(args, playlist)
	}

	query += " ORDER BY started_at DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		var (
			run      models.SyncRun
			artists  string
			started  time.Time
			finished sql.NullTime
		)

		err := rows.Scan(&run.ID, &run.Playlist, &run.Action, &artists, &run.Expected, &run.Observed, &run.Mismatch,
			&run.Error, &started, &finished)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}

		if artists != "" {
			run.Artists = strings.Split(artists, ",")
		}
		run.StartedAt = started
		if finished.Valid {
			run.FinishedAt = finished.Time
		}

		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}
