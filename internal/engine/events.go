package engine

import (
	"time"

	"github.com/asheridan/loom/pkg/models"
)

// EventType represents the type of engine event.
type EventType string

const (
	// EventChunkStateChanged indicates a chunk transitioned to a new state.
	EventChunkStateChanged EventType = "chunk_state_changed"
	// EventRunCompleted indicates a run reached a terminal verdict.
	EventRunCompleted EventType = "run_completed"
	// EventRunFailed indicates a run aborted before any chunk was dispatched.
	EventRunFailed EventType = "run_failed"
)

// Event is an observation emitted by the engine as runs progress.
// Consumers (CLI progress, HTTP stream) subscribe via Engine.Events.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// RunID is the run this event belongs to.
	RunID string
	// ChunkID is the related chunk, if applicable.
	ChunkID string
	// AgentID is the agent executing the chunk, if applicable.
	AgentID string
	// State is the chunk's new state for state-change events.
	State models.ChunkState
	// Verdict is the run's verdict for terminal events.
	Verdict models.RunVerdict
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
