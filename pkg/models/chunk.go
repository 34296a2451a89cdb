package models

import "time"

// ChunkState represents the current state of a chunk in its lifecycle.
type ChunkState string

const (
	// ChunkPending indicates the chunk is waiting on unmet dependencies.
	ChunkPending ChunkState = "pending"
	// ChunkReady indicates all dependencies are accepted and the chunk can be dispatched.
	ChunkReady ChunkState = "ready"
	// ChunkDispatched indicates the chunk has been handed to an agent but is not yet running.
	ChunkDispatched ChunkState = "dispatched"
	// ChunkRunning indicates an agent is actively executing the chunk.
	ChunkRunning ChunkState = "running"
	// ChunkGated indicates execution finished and quality gates are being evaluated.
	ChunkGated ChunkState = "gated"
	// ChunkFailed indicates execution failed or timed out; retry may follow.
	ChunkFailed ChunkState = "failed"
	// ChunkAccepted indicates the chunk passed its quality gates. Terminal.
	ChunkAccepted ChunkState = "accepted"
	// ChunkRejected indicates the chunk exhausted its retry budget. Terminal.
	ChunkRejected ChunkState = "rejected"
	// ChunkBlocked indicates a dependency was rejected or no capable agent exists. Terminal.
	ChunkBlocked ChunkState = "blocked"
	// ChunkCancelled indicates the run was cancelled before the chunk finished. Terminal.
	ChunkCancelled ChunkState = "cancelled"
)

// Valid returns true if the state is a known value.
func (s ChunkState) Valid() bool {
	switch s {
	case ChunkPending, ChunkReady, ChunkDispatched, ChunkRunning, ChunkGated,
		ChunkFailed, ChunkAccepted, ChunkRejected, ChunkBlocked, ChunkCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if the state permits no further transitions.
func (s ChunkState) Terminal() bool {
	switch s {
	case ChunkAccepted, ChunkRejected, ChunkBlocked, ChunkCancelled:
		return true
	default:
		return false
	}
}

// SizeClass buckets a chunk's estimated effort.
type SizeClass string

const (
	// SizeSmall is 1-2 work units.
	SizeSmall SizeClass = "small"
	// SizeMedium is 3-5 work units.
	SizeMedium SizeClass = "medium"
	// SizeLarge is 6-8 work units.
	SizeLarge SizeClass = "large"
)

// Valid returns true if the size class is a known value.
func (s SizeClass) Valid() bool {
	switch s {
	case SizeSmall, SizeMedium, SizeLarge:
		return true
	default:
		return false
	}
}

// SizeClassForUnits maps a work-unit estimate to its size class.
func SizeClassForUnits(units int) SizeClass {
	switch {
	case units <= 2:
		return SizeSmall
	case units <= 5:
		return SizeMedium
	default:
		return SizeLarge
	}
}

// Chunk is an atomic unit of decomposed work.
type Chunk struct {
	// ID is the unique identifier for this chunk.
	ID string `json:"id"`
	// RequestID is the ID of the request this chunk was decomposed from.
	RequestID string `json:"request_id"`
	// Description is the text of the sub-goal this chunk covers.
	Description string `json:"description"`
	// Units is the estimated effort in work units (1-8).
	Units int `json:"units"`
	// Size is the size class derived from Units.
	Size SizeClass `json:"size"`
	// DependsOn lists chunk IDs that must be accepted before this chunk runs.
	DependsOn []string `json:"depends_on,omitempty"`
	// RequiredTags lists capability tags an agent must have to run this chunk.
	// Empty means any agent may run it.
	RequiredTags []string `json:"required_tags,omitempty"`
	// State is the current lifecycle state.
	State ChunkState `json:"state"`
	// Position is the chunk's textual position in the original request,
	// used for deterministic aggregation order.
	Position int `json:"position"`
	// Attempts is the number of dispatch attempts made so far.
	Attempts int `json:"attempts"`
	// Output is the result produced by the executing agent, if any.
	Output string `json:"output,omitempty"`
	// GateWarnings holds non-fatal annotations from quality gate evaluation.
	GateWarnings []string `json:"gate_warnings,omitempty"`
	// BlockedReason explains a terminal blocked or rejected state.
	BlockedReason string `json:"blocked_reason,omitempty"`
	// Deliverable marks chunks whose output is externally visible.
	Deliverable bool `json:"deliverable,omitempty"`
	// CreatedAt is when the chunk was created.
	CreatedAt time.Time `json:"created_at"`
}

// FeedsDependents reports whether any other chunk consumes this chunk's output.
// The caller supplies the full chunk set; the chunk itself does not know its dependents.
func (c *Chunk) FeedsDependents(all []*Chunk) bool {
	for _, other := range all {
		for _, dep := range other.DependsOn {
			if dep == c.ID {
				return true
			}
		}
	}
	return false
}
