package models

import "testing"

func TestChunkStateValid(t *testing.T) {
	valid := []ChunkState{
		ChunkPending, ChunkReady, ChunkDispatched, ChunkRunning, ChunkGated,
		ChunkFailed, ChunkAccepted, ChunkRejected, ChunkBlocked, ChunkCancelled,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected state %q to be valid", s)
		}
	}

	if ChunkState("exploded").Valid() {
		t.Error("expected unknown state to be invalid")
	}
}

func TestChunkStateTerminal(t *testing.T) {
	terminal := []ChunkState{ChunkAccepted, ChunkRejected, ChunkBlocked, ChunkCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected state %q to be terminal", s)
		}
	}

	live := []ChunkState{ChunkPending, ChunkReady, ChunkDispatched, ChunkRunning, ChunkGated, ChunkFailed}
	for _, s := range live {
		if s.Terminal() {
			t.Errorf("expected state %q to be non-terminal", s)
		}
	}
}

func TestSizeClassForUnits(t *testing.T) {
	cases := []struct {
		units int
		want  SizeClass
	}{
		{1, SizeSmall},
		{2, SizeSmall},
		{3, SizeMedium},
		{5, SizeMedium},
		{6, SizeLarge},
		{8, SizeLarge},
	}

	for _, tc := range cases {
		if got := SizeClassForUnits(tc.units); got != tc.want {
			t.Errorf("SizeClassForUnits(%d) = %q, want %q", tc.units, got, tc.want)
		}
	}
}

func TestChunkFeedsDependents(t *testing.T) {
	a := &Chunk{ID: "a"}
	b := &Chunk{ID: "b", DependsOn: []string{"a"}}
	all := []*Chunk{a, b}

	if !a.FeedsDependents(all) {
		t.Error("expected chunk a to feed dependents")
	}
	if b.FeedsDependents(all) {
		t.Error("expected chunk b to have no dependents")
	}
}
