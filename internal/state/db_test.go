package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/asheridan/loom/pkg/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func terminalSnapshot(runID string) *models.RunSnapshot {
	now := time.Now()
	return &models.RunSnapshot{
		RunID:     runID,
		RequestID: "req-1",
		Score:     models.ComplexityScore{Aggregate: 6.5},
		Chunks: []models.Chunk{
			{ID: "c1", Position: 0, State: models.ChunkAccepted, Attempts: 1},
			{ID: "c2", Position: 1, State: models.ChunkRejected, Attempts: 3},
		},
		Verdict:    models.VerdictPartiallyFailed,
		StartedAt:  now.Add(-time.Minute),
		FinishedAt: &now,
		Result: &models.FinalResult{
			RunID:       runID,
			Verdict:     models.VerdictPartiallyFailed,
			Deliverable: "partial output",
			Manifest: []models.ManifestEntry{
				{ChunkID: "c1", Description: "first", Fate: models.FateAccepted, Attempts: 1},
				{ChunkID: "c2", Description: "second", Fate: models.FateRejected, Attempts: 3, Reason: "timed out"},
			},
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.SaveRun(ctx, terminalSnapshot("run-1")); err != nil {
		t.Fatalf("save run: %v", err)
	}

	rec, err := db.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if rec.Verdict != models.VerdictPartiallyFailed {
		t.Errorf("unexpected verdict: %s", rec.Verdict)
	}
	if rec.Deliverable != "partial output" {
		t.Errorf("unexpected deliverable: %q", rec.Deliverable)
	}
	if len(rec.Manifest) != 2 {
		t.Fatalf("expected 2 manifest entries, got %d", len(rec.Manifest))
	}
	if rec.Manifest[0].ChunkID != "c1" {
		t.Errorf("manifest not in position order: %s first", rec.Manifest[0].ChunkID)
	}
	if rec.Manifest[1].Reason != "timed out" {
		t.Errorf("rejection reason not persisted: %q", rec.Manifest[1].Reason)
	}
}

func TestSaveRunRejectsNonTerminal(t *testing.T) {
	db := openTestDB(t)

	snap := &models.RunSnapshot{RunID: "run-x", Verdict: models.VerdictNone}
	if err := db.SaveRun(context.Background(), snap); err == nil {
		t.Error("expected error for non-terminal snapshot")
	}
}

func TestGetRunNotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetRun(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, id := range []string{"run-a", "run-b", "run-c"} {
		snap := terminalSnapshot(id)
		if err := db.SaveRun(ctx, snap); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	all, err := db.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 runs, got %d", len(all))
	}

	limited, err := db.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list runs limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 runs with limit, got %d", len(limited))
	}
}

func TestSaveRunIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	snap := terminalSnapshot("run-1")
	if err := db.SaveRun(ctx, snap); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := db.SaveRun(ctx, snap); err != nil {
		t.Fatalf("second save: %v", err)
	}

	all, err := db.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected single run after re-save, got %d", len(all))
	}
}
