package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/asheridan/loom/pkg/models"
)

func snapshotFixture() *models.RunSnapshot {
	return &models.RunSnapshot{
		RunID:     "r1",
		RequestID: "req1",
		Chunks: []models.Chunk{
			{ID: "c1", Description: "Draft the summary document", State: models.ChunkAccepted, Attempts: 1},
			{ID: "c2", Description: "Build the report pipeline", State: models.ChunkRunning, Attempts: 2},
			{ID: "c3", Description: "Verify the output", State: models.ChunkPending},
		},
		Assignments: []models.Assignment{
			{ChunkID: "c2", AgentID: "agent-1", Attempt: 2},
		},
		StartedAt: time.Now(),
	}
}

func TestDashboardShowsChunkRows(t *testing.T) {
	d := NewDashboard("r1")
	d.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	d.Update(RunUpdateMsg{Snapshot: snapshotFixture()})

	view := d.View()
	for _, want := range []string{"Run r1", "c1", "c2", "c3", "@agent-1", "attempt 2"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestDashboardWaitsForFirstSnapshot(t *testing.T) {
	d := NewDashboard("r1")
	if !strings.Contains(d.View(), "waiting for first snapshot") {
		t.Errorf("expected placeholder before first snapshot:\n%s", d.View())
	}
}

func TestDashboardDoneShowsVerdict(t *testing.T) {
	d := NewDashboard("r1")
	d.Update(RunUpdateMsg{Snapshot: snapshotFixture()})
	d.Update(RunDoneMsg{Verdict: models.VerdictPartiallyFailed})

	if !d.Done() {
		t.Fatal("expected Done after RunDoneMsg")
	}
	view := d.View()
	if !strings.Contains(view, string(models.VerdictPartiallyFailed)) {
		t.Errorf("view missing verdict:\n%s", view)
	}
	if !strings.Contains(view, "Press q to exit") {
		t.Errorf("view missing exit hint:\n%s", view)
	}
}

func TestDashboardQuitKey(t *testing.T) {
	d := NewDashboard("r1")
	_, cmd := d.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if !d.Quitting() {
		t.Fatal("expected Quitting after q")
	}
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
}

func TestDashboardLogTrimming(t *testing.T) {
	d := NewDashboard("r1")
	for i := 0; i < maxLogLines*5; i++ {
		d.Update(RunLogMsg{Timestamp: time.Now(), Message: "chunk event"})
	}
	if len(d.logs) > maxLogLines*4 {
		t.Errorf("log not trimmed: %d entries", len(d.logs))
	}

	view := d.View()
	if got := strings.Count(view, "chunk event"); got > maxLogLines {
		t.Errorf("view shows %d log lines, want at most %d", got, maxLogLines)
	}
}

func TestDashboardBlockedReasonShown(t *testing.T) {
	snap := snapshotFixture()
	snap.Chunks[2].State = models.ChunkBlocked
	snap.Chunks[2].BlockedReason = "dependency rejected: c2"

	d := NewDashboard("r1")
	d.Update(RunUpdateMsg{Snapshot: snap})
	if !strings.Contains(d.View(), "dependency rejected") {
		t.Errorf("view missing blocked reason:\n%s", d.View())
	}
}
