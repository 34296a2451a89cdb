package models

import (
	"errors"
	"testing"
	"time"
)

func TestRequestValidate(t *testing.T) {
	req := &Request{
		ID:          "req-1",
		Description: "build the thing",
		Constraints: Constraints{MaxParallel: 2},
	}
	if err := req.Validate(); err != nil {
		t.Errorf("expected valid request, got %v", err)
	}
}

func TestRequestValidateRejectsNonPositiveParallelism(t *testing.T) {
	req := &Request{
		ID:          "req-1",
		Description: "build the thing",
		Constraints: Constraints{MaxParallel: 0},
	}
	err := req.Validate()
	if err == nil {
		t.Fatal("expected error for zero max parallelism")
	}
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestRequestValidateRejectsEmptyDescription(t *testing.T) {
	req := &Request{
		ID:          "req-1",
		Description: "   ",
		Constraints: Constraints{MaxParallel: 1},
	}
	if err := req.Validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestRequestValidateRejectsPastDeadline(t *testing.T) {
	req := &Request{
		ID:          "req-1",
		Description: "build the thing",
		Constraints: Constraints{
			MaxParallel: 1,
			Deadline:    time.Now().Add(-time.Hour),
		},
	}
	if err := req.Validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestRunVerdictTerminal(t *testing.T) {
	if VerdictNone.Terminal() {
		t.Error("expected VerdictNone to be non-terminal")
	}
	for _, v := range []RunVerdict{VerdictSucceeded, VerdictPartiallyFailed, VerdictFailed, VerdictCancelled} {
		if !v.Terminal() {
			t.Errorf("expected verdict %q to be terminal", v)
		}
	}
}

func TestRunSnapshotProgress(t *testing.T) {
	snap := &RunSnapshot{
		Chunks: []Chunk{
			{ID: "a", State: ChunkAccepted},
			{ID: "b", State: ChunkRunning},
			{ID: "c", State: ChunkRejected},
			{ID: "d", State: ChunkPending},
		},
	}

	if got := snap.Progress(); got != 0.5 {
		t.Errorf("expected progress 0.5, got %f", got)
	}
}

func TestRunSnapshotProgressEmpty(t *testing.T) {
	snap := &RunSnapshot{}
	if got := snap.Progress(); got != 0 {
		t.Errorf("expected progress 0 for empty run, got %f", got)
	}
}

func TestAgentInfoIdleRatio(t *testing.T) {
	a := AgentInfo{ID: "a1", Capacity: 4, CurrentLoad: 1}
	if got := a.IdleRatio(); got != 0.75 {
		t.Errorf("expected idle ratio 0.75, got %f", got)
	}

	full := AgentInfo{ID: "a2", Capacity: 2, CurrentLoad: 3}
	if got := full.IdleRatio(); got != 0 {
		t.Errorf("expected idle ratio 0 for overloaded agent, got %f", got)
	}

	zero := AgentInfo{ID: "a3"}
	if got := zero.IdleRatio(); got != 0 {
		t.Errorf("expected idle ratio 0 for zero-capacity agent, got %f", got)
	}
}
