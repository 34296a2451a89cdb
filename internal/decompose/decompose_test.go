package decompose

import (
	"errors"
	"strings"
	"testing"

	"github.com/asheridan/loom/internal/config"
	"github.com/asheridan/loom/pkg/models"
)

func newDecomposer() *Decomposer {
	return New(config.DefaultTaxonomy(), 1, 8)
}

func TestDecomposeEmptyRequest(t *testing.T) {
	d := newDecomposer()
	_, err := d.Decompose(&models.Request{ID: "r1", Description: "   "})

	if !errors.Is(err, ErrDecomposition) {
		t.Errorf("expected ErrDecomposition, got %v", err)
	}
}

func TestDecomposeUnstructuredTextYieldsSingleChunk(t *testing.T) {
	d := newDecomposer()
	chunks, err := d.Decompose(&models.Request{
		ID:          "r1",
		Description: "Rename the config field across the codebase",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].State != models.ChunkPending {
		t.Errorf("expected pending state, got %s", chunks[0].State)
	}
	if len(chunks[0].DependsOn) != 0 {
		t.Errorf("single chunk should have no dependencies, got %v", chunks[0].DependsOn)
	}
}

func TestDecomposeListItems(t *testing.T) {
	d := newDecomposer()
	desc := strings.Join([]string{
		"Ship the analytics feature.",
		"1. Design the database schema for event storage and write the migration scripts so the data model is settled",
		"2. Implement the ingestion endpoint with validation, rate limiting, and structured error responses for the api",
		"3. Build the reporting dashboard page using the output of the ingestion endpoint",
	}, "\n")

	chunks, err := d.Decompose(&models.Request{ID: "r1", Description: desc})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	for i, c := range chunks {
		if c.Position != i {
			t.Errorf("chunk %d has position %d", i, c.Position)
		}
		if c.Units < 1 || c.Units > 8 {
			t.Errorf("chunk %d units out of bounds: %d", i, c.Units)
		}
		if !c.Size.Valid() {
			t.Errorf("chunk %d has invalid size class %q", i, c.Size)
		}
	}

	// The dashboard step explicitly consumes the endpoint's output.
	last := chunks[2]
	found := false
	for _, dep := range last.DependsOn {
		if dep == chunks[1].ID {
			found = true
		}
	}
	if !found {
		t.Errorf("expected chunk %s to depend on %s, got %v", last.ID, chunks[1].ID, last.DependsOn)
	}
}

func TestDecomposeTagsFromTaxonomy(t *testing.T) {
	d := newDecomposer()
	chunks, err := d.Decompose(&models.Request{
		ID:          "r1",
		Description: "- Build the REST api server endpoints for account management\n- Write the user guide documentation for the new feature set",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}

	hasTag := func(c *models.Chunk, tag string) bool {
		for _, tg := range c.RequiredTags {
			if tg == tag {
				return true
			}
		}
		return false
	}
	if !hasTag(chunks[0], "backend") {
		t.Errorf("expected backend tag on api chunk, got %v", chunks[0].RequiredTags)
	}
	if !hasTag(chunks[1], "writing") {
		t.Errorf("expected writing tag on docs chunk, got %v", chunks[1].RequiredTags)
	}
}

func TestDecomposeBreaksContradictoryOrdering(t *testing.T) {
	d := newDecomposer()
	// Both steps claim to come after the other. The result must stay acyclic
	// and keep both chunks.
	desc := "- Write the schema migration after the api endpoint handler is in place\n" +
		"- Build the api endpoint handler after the schema migration lands"

	chunks, err := d.Decompose(&models.Request{ID: "r1", Description: desc})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("cycle breaking must never drop a chunk, got %d chunks", len(chunks))
	}

	deps := 0
	for _, c := range chunks {
		deps += len(c.DependsOn)
	}
	if deps > 1 {
		t.Errorf("expected at most one surviving edge after cycle break, got %d", deps)
	}
}

func TestDecomposeDeliverableFlag(t *testing.T) {
	d := newDecomposer()
	chunks, err := d.Decompose(&models.Request{
		ID:          "r1",
		Description: "- Produce the quarterly report with charts and commentary for leadership review\n" +
			"- Tidy up variable naming in the helper functions across the project, " +
			"making sure every exported identifier follows the established conventions, " +
			"renaming any abbreviations that are unclear to new contributors, " +
			"and leaving the behavior of each function entirely unchanged while you work through the files one at a time",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}

	if !chunks[0].Deliverable {
		t.Error("expected deliverable flag on report chunk")
	}
	if chunks[1].Deliverable {
		t.Error("did not expect deliverable flag on cleanup chunk")
	}
}

func TestSingleChunk(t *testing.T) {
	d := newDecomposer()
	c := d.SingleChunk(&models.Request{ID: "r9", Description: "Fix the typo in the greeting message"})

	if c.RequestID != "r9" {
		t.Errorf("expected request id r9, got %s", c.RequestID)
	}
	if c.State != models.ChunkPending {
		t.Errorf("expected pending state, got %s", c.State)
	}
	if c.Units < 1 {
		t.Errorf("units must be at least 1, got %d", c.Units)
	}
}

func TestSplitSubGoalsProseSequence(t *testing.T) {
	goals := splitSubGoals("Set up the database, then seed it with fixtures, and then run the smoke checks")

	if len(goals) != 3 {
		t.Fatalf("expected 3 sub-goals, got %d: %+v", len(goals), goals)
	}
	for i, g := range goals {
		if g.position != i {
			t.Errorf("sub-goal %d has position %d", i, g.position)
		}
	}
}

func TestCoalesceMergesTrivialGoals(t *testing.T) {
	goals := []subGoal{
		{text: "do a", position: 0},
		{text: "do b", position: 1},
		{text: strings.Repeat("substantial work description ", 20), position: 2},
	}

	merged := coalesce(goals, 1, 8)
	if len(merged) >= len(goals) {
		t.Errorf("expected trivial goals to merge, got %d from %d", len(merged), len(goals))
	}
	for i, g := range merged {
		if g.position != i {
			t.Errorf("merged goal %d has stale position %d", i, g.position)
		}
	}
}

func TestInferEdgesSharedArtifact(t *testing.T) {
	goals := []subGoal{
		{text: "design the schema for orders", position: 0},
		{text: "review the schema with the data team", position: 1},
	}

	edges := inferEdges(goals, nil)
	if len(edges) != 1 {
		t.Fatalf("expected one shared-artifact edge, got %d", len(edges))
	}
	if edges[0].from != 1 || edges[0].to != 0 {
		t.Errorf("expected later goal to depend on earlier, got %+v", edges[0])
	}
	if edges[0].confidence != confidenceArtifact {
		t.Errorf("expected artifact confidence, got %f", edges[0].confidence)
	}
}
