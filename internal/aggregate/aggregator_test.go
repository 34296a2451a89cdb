package aggregate

import (
	"strings"
	"testing"

	"github.com/asheridan/loom/pkg/models"
)

func TestAggregateAllAcceptedSucceeds(t *testing.T) {
	agg := New(nil)
	chunks := []*models.Chunk{
		{ID: "c2", Position: 1, State: models.ChunkAccepted, Output: "second part", Attempts: 1},
		{ID: "c1", Position: 0, State: models.ChunkAccepted, Output: "first part", Attempts: 1},
	}

	result := agg.Aggregate("run-1", chunks, false)

	if result.Verdict != models.VerdictSucceeded {
		t.Errorf("expected succeeded verdict, got %s", result.Verdict)
	}
	if result.Deliverable != "first part\n\nsecond part" {
		t.Errorf("deliverable not in position order: %q", result.Deliverable)
	}
	if len(result.Manifest) != 2 {
		t.Fatalf("expected 2 manifest entries, got %d", len(result.Manifest))
	}
	if result.Manifest[0].ChunkID != "c1" {
		t.Errorf("manifest not in position order, first entry %s", result.Manifest[0].ChunkID)
	}
}

func TestAggregatePartialFailure(t *testing.T) {
	agg := New(nil)
	chunks := []*models.Chunk{
		{ID: "c1", Position: 0, State: models.ChunkAccepted, Output: "done", Attempts: 1},
		{ID: "c2", Position: 1, State: models.ChunkRejected, Attempts: 3, BlockedReason: "timed out"},
		{ID: "c3", Position: 2, State: models.ChunkBlocked, BlockedReason: "dependency rejected: c2"},
	}

	result := agg.Aggregate("run-1", chunks, false)

	if result.Verdict != models.VerdictPartiallyFailed {
		t.Errorf("expected partially failed verdict, got %s", result.Verdict)
	}
	if result.Deliverable != "done" {
		t.Errorf("deliverable should carry accepted output only, got %q", result.Deliverable)
	}

	fates := map[string]models.ChunkFate{}
	reasons := map[string]string{}
	for _, e := range result.Manifest {
		fates[e.ChunkID] = e.Fate
		reasons[e.ChunkID] = e.Reason
	}
	if fates["c2"] != models.FateRejected {
		t.Errorf("expected c2 rejected, got %s", fates["c2"])
	}
	if fates["c3"] != models.FateBlocked {
		t.Errorf("expected c3 blocked, got %s", fates["c3"])
	}
	if !strings.Contains(reasons["c3"], "c2") {
		t.Errorf("blocked reason should name the failed dependency, got %q", reasons["c3"])
	}
}

func TestAggregateNothingAcceptedFails(t *testing.T) {
	agg := New(nil)
	chunks := []*models.Chunk{
		{ID: "c1", Position: 0, State: models.ChunkRejected, Attempts: 3},
	}

	result := agg.Aggregate("run-1", chunks, false)
	if result.Verdict != models.VerdictFailed {
		t.Errorf("expected failed verdict, got %s", result.Verdict)
	}
	if result.Deliverable != "" {
		t.Errorf("expected empty deliverable, got %q", result.Deliverable)
	}
}

func TestAggregateCancellationWins(t *testing.T) {
	agg := New(nil)
	chunks := []*models.Chunk{
		{ID: "c1", Position: 0, State: models.ChunkAccepted, Output: "partial work", Attempts: 1},
		{ID: "c2", Position: 1, State: models.ChunkCancelled},
	}

	result := agg.Aggregate("run-1", chunks, true)

	if result.Verdict != models.VerdictCancelled {
		t.Errorf("expected cancelled verdict, got %s", result.Verdict)
	}
	if result.Deliverable != "partial work" {
		t.Errorf("cancelled manifest should still carry accepted output, got %q", result.Deliverable)
	}
	if result.Manifest[1].Fate != models.FateCancelled {
		t.Errorf("expected cancelled fate, got %s", result.Manifest[1].Fate)
	}
}

func TestAggregateRecordsAttempts(t *testing.T) {
	agg := New(nil)
	chunks := []*models.Chunk{
		{ID: "c1", Position: 0, State: models.ChunkAccepted, Output: "ok", Attempts: 2},
	}

	result := agg.Aggregate("run-1", chunks, false)
	if result.Manifest[0].Attempts != 2 {
		t.Errorf("expected 2 attempts in manifest, got %d", result.Manifest[0].Attempts)
	}
}

// joinWithRule is a custom strategy for testing strategy injection.
type joinWithRule struct{}

func (joinWithRule) Merge(chunks []*models.Chunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Output)
	}
	return strings.Join(parts, "\n---\n")
}

func TestAggregateCustomStrategy(t *testing.T) {
	agg := New(joinWithRule{})
	chunks := []*models.Chunk{
		{ID: "c1", Position: 0, State: models.ChunkAccepted, Output: "a"},
		{ID: "c2", Position: 1, State: models.ChunkAccepted, Output: "b"},
	}

	result := agg.Aggregate("run-1", chunks, false)
	if result.Deliverable != "a\n---\nb" {
		t.Errorf("custom strategy not applied: %q", result.Deliverable)
	}
}
