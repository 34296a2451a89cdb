package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/asheridan/loom/pkg/models"
)

// ErrRunNotFound indicates no stored run matches the given ID.
var ErrRunNotFound = errors.New("run not found in history")

// RunRecord is the stored summary of a completed run.
type RunRecord struct {
	// RunID identifies the run.
	RunID string
	// RequestID identifies the originating request.
	RequestID string
	// Verdict is the terminal outcome.
	Verdict models.RunVerdict
	// Deliverable is the merged output.
	Deliverable string
	// Complexity is the request's aggregate complexity score.
	Complexity float64
	// Manifest lists every chunk's fate.
	Manifest []models.ManifestEntry
	// StartedAt is when the run began.
	StartedAt string
	// FinishedAt is when the run reached its verdict, empty if unknown.
	FinishedAt string
}

// SaveRun persists a terminal run snapshot. Non-terminal snapshots are
// rejected; history holds finished runs only.
func (db *DB) SaveRun(ctx context.Context, snap *models.RunSnapshot) error {
	if !snap.Verdict.Terminal() || snap.Result == nil {
		return fmt.Errorf("run %s is not terminal", snap.RunID)
	}

	return db.Transaction(func(tx *sql.Tx) error {
		finishedAt := sql.NullString{}
		if snap.FinishedAt != nil {
			finishedAt = sql.NullString{String: formatTime(*snap.FinishedAt), Valid: true}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO runs (id, request_id, verdict, deliverable, complexity, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			snap.RunID, snap.RequestID, string(snap.Verdict), snap.Result.Deliverable,
			snap.Score.Aggregate, formatTime(snap.StartedAt), finishedAt,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		positions := make(map[string]int, len(snap.Chunks))
		for _, c := range snap.Chunks {
			positions[c.ID] = c.Position
		}

		for _, entry := range snap.Result.Manifest {
			_, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO chunks (id, run_id, description, fate, attempts, reason, position)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				entry.ChunkID, snap.RunID, entry.Description, string(entry.Fate),
				entry.Attempts, entry.Reason, positions[entry.ChunkID],
			)
			if err != nil {
				return fmt.Errorf("insert chunk %s: %w", entry.ChunkID, err)
			}
		}
		return nil
	})
}

// GetRun loads a stored run with its manifest.
func (db *DB) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var rec RunRecord
	var finishedAt sql.NullString
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, request_id, verdict, deliverable, complexity, started_at, finished_at
		FROM runs WHERE id = ?`, runID)
	err := row.Scan(&rec.RunID, &rec.RequestID, (*string)(&rec.Verdict), &rec.Deliverable,
		&rec.Complexity, &rec.StartedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}
	if finishedAt.Valid {
		rec.FinishedAt = finishedAt.String
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, description, fate, attempts, COALESCE(reason, '')
		FROM chunks WHERE run_id = ? ORDER BY position, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry models.ManifestEntry
		if err := rows.Scan(&entry.ChunkID, &entry.Description, (*string)(&entry.Fate),
			&entry.Attempts, &entry.Reason); err != nil {
			return nil, fmt.Errorf("scan manifest entry: %w", err)
		}
		rec.Manifest = append(rec.Manifest, entry)
	}
	return &rec, rows.Err()
}

// ListRuns returns stored run summaries, most recent first, without
// manifests. limit <= 0 returns everything.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	query := `
		SELECT id, request_id, verdict, deliverable, complexity, started_at, finished_at
		FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var finishedAt sql.NullString
		if err := rows.Scan(&rec.RunID, &rec.RequestID, (*string)(&rec.Verdict), &rec.Deliverable,
			&rec.Complexity, &rec.StartedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if finishedAt.Valid {
			rec.FinishedAt = finishedAt.String
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
