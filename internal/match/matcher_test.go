package match

import (
	"errors"
	"testing"

	"github.com/asheridan/loom/pkg/models"
)

func TestMatchCandidatesRanksByTagOverlap(t *testing.T) {
	chunk := &models.Chunk{ID: "c1", RequiredTags: []string{"backend", "data"}}
	agents := []models.AgentInfo{
		{ID: "a-partial", Tags: []string{"backend"}, Capacity: 2},
		{ID: "a-full", Tags: []string{"backend", "data"}, Capacity: 2},
		{ID: "a-none", Tags: []string{"frontend"}, Capacity: 2},
	}

	candidates, err := MatchCandidates(chunk, agents)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates (zero-overlap excluded), got %d", len(candidates))
	}
	if candidates[0].AgentID != "a-full" {
		t.Errorf("expected full-overlap agent first, got %s", candidates[0].AgentID)
	}
	if candidates[1].AgentID != "a-partial" {
		t.Errorf("expected partial-overlap agent second, got %s", candidates[1].AgentID)
	}
}

func TestMatchCandidatesIdleBreaksTies(t *testing.T) {
	chunk := &models.Chunk{ID: "c1", RequiredTags: []string{"backend"}}
	agents := []models.AgentInfo{
		{ID: "a-busy", Tags: []string{"backend"}, Capacity: 4, CurrentLoad: 3},
		{ID: "a-idle", Tags: []string{"backend"}, Capacity: 4, CurrentLoad: 0},
	}

	candidates, err := MatchCandidates(chunk, agents)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidates[0].AgentID != "a-idle" {
		t.Errorf("expected idle agent first, got %s", candidates[0].AgentID)
	}
}

func TestMatchCandidatesNoRequiredTagsMatchesAll(t *testing.T) {
	chunk := &models.Chunk{ID: "c1"}
	agents := []models.AgentInfo{
		{ID: "a1", Tags: []string{"frontend"}, Capacity: 1},
		{ID: "a2", Capacity: 1},
	}

	candidates, err := MatchCandidates(chunk, agents)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 2 {
		t.Errorf("expected all agents as candidates, got %d", len(candidates))
	}
}

func TestMatchCandidatesNoCapableAgent(t *testing.T) {
	chunk := &models.Chunk{ID: "c1", RequiredTags: []string{"research"}}
	agents := []models.AgentInfo{
		{ID: "a1", Tags: []string{"backend"}, Capacity: 1},
	}

	_, err := MatchCandidates(chunk, agents)
	if !errors.Is(err, ErrNoCapableAgent) {
		t.Errorf("expected ErrNoCapableAgent, got %v", err)
	}
}

func TestMatchCandidatesEmptySnapshot(t *testing.T) {
	chunk := &models.Chunk{ID: "c1"}

	_, err := MatchCandidates(chunk, nil)
	if !errors.Is(err, ErrNoCapableAgent) {
		t.Errorf("expected ErrNoCapableAgent for empty snapshot, got %v", err)
	}
}

func TestMatchCandidatesDeterministicOrder(t *testing.T) {
	chunk := &models.Chunk{ID: "c1", RequiredTags: []string{"backend"}}
	agents := []models.AgentInfo{
		{ID: "b", Tags: []string{"backend"}, Capacity: 1},
		{ID: "a", Tags: []string{"backend"}, Capacity: 1},
	}

	first, err := MatchCandidates(chunk, agents)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first[0].AgentID != "a" || first[1].AgentID != "b" {
		t.Errorf("expected ID order for full ties, got %s then %s", first[0].AgentID, first[1].AgentID)
	}
}
