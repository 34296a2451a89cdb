package models

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidRequest indicates a request with malformed constraints.
var ErrInvalidRequest = errors.New("invalid request")

// Constraints are the caller-declared limits on a request.
type Constraints struct {
	// Deadline is when the run must finish; zero means no deadline.
	Deadline time.Time `json:"deadline,omitempty"`
	// MaxParallel is the maximum number of concurrently running chunks.
	MaxParallel int `json:"max_parallel"`
	// QualityThreshold is the minimum aggregate quality the caller requires,
	// on the same 0-10 scale as complexity scores. Zero means default.
	QualityThreshold float64 `json:"quality_threshold,omitempty"`
}

// Request is the unit of work submitted by a caller.
// It is immutable once accepted.
type Request struct {
	// ID is the unique identifier for this request.
	ID string `json:"id"`
	// Description is the free-form text of the work requested.
	Description string `json:"description"`
	// Constraints are the declared limits for this request.
	Constraints Constraints `json:"constraints"`
	// SubmittedAt is when the request was accepted.
	SubmittedAt time.Time `json:"submitted_at"`
}

// Validate checks the request's constraints.
// Returns an error wrapping ErrInvalidRequest when malformed.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.Description) == "" {
		return errors.Join(ErrInvalidRequest, errors.New("empty description"))
	}
	if r.Constraints.MaxParallel <= 0 {
		return errors.Join(ErrInvalidRequest, errors.New("max parallelism must be positive"))
	}
	if r.Constraints.QualityThreshold < 0 || r.Constraints.QualityThreshold > 10 {
		return errors.Join(ErrInvalidRequest, errors.New("quality threshold out of range"))
	}
	if !r.Constraints.Deadline.IsZero() && r.Constraints.Deadline.Before(time.Now()) {
		return errors.Join(ErrInvalidRequest, errors.New("deadline in the past"))
	}
	return nil
}

// ComplexityScore holds the per-dimension complexity of a request on a 0-10
// scale, plus the weighted aggregate. Computed once per request, never mutated.
type ComplexityScore struct {
	// Structural measures how many distinct sub-goals the text implies.
	Structural int `json:"structural"`
	// Resource measures how many distinct capabilities/deliverables are involved.
	Resource int `json:"resource"`
	// Timeline measures deadline pressure.
	Timeline int `json:"timeline"`
	// Coordination measures cross-chunk ordering pressure.
	Coordination int `json:"coordination"`
	// Aggregate is the weighted average of the four dimensions.
	Aggregate float64 `json:"aggregate"`
	// RecommendDecomposition is true when the aggregate meets the configured threshold.
	RecommendDecomposition bool `json:"recommend_decomposition"`
}

// RunVerdict is the terminal outcome of a run.
type RunVerdict string

const (
	// VerdictNone indicates the run has not reached a terminal state.
	VerdictNone RunVerdict = ""
	// VerdictSucceeded indicates all chunks were accepted.
	VerdictSucceeded RunVerdict = "succeeded"
	// VerdictPartiallyFailed indicates some chunks were accepted and some
	// were permanently rejected or blocked.
	VerdictPartiallyFailed RunVerdict = "partially_failed"
	// VerdictFailed indicates no chunk was accepted.
	VerdictFailed RunVerdict = "failed"
	// VerdictCancelled indicates the run was cancelled before completion.
	VerdictCancelled RunVerdict = "cancelled"
)

// Terminal returns true for any verdict other than VerdictNone.
func (v RunVerdict) Terminal() bool {
	return v != VerdictNone
}

// ChunkFate is the manifest classification of a chunk's final state.
type ChunkFate string

const (
	// FateAccepted indicates the chunk passed its gates.
	FateAccepted ChunkFate = "accepted"
	// FateRejected indicates the chunk exhausted its retries.
	FateRejected ChunkFate = "rejected"
	// FateBlocked indicates the chunk never ran because a dependency failed
	// or no capable agent existed.
	FateBlocked ChunkFate = "blocked"
	// FateCancelled indicates the run was cancelled before the chunk finished.
	FateCancelled ChunkFate = "cancelled"
)

// ManifestEntry records the fate of one chunk for the final result.
type ManifestEntry struct {
	// ChunkID is the chunk this entry describes.
	ChunkID string `json:"chunk_id"`
	// Description is the chunk's description, for human-readable manifests.
	Description string `json:"description"`
	// Fate is the chunk's terminal classification.
	Fate ChunkFate `json:"fate"`
	// Attempts is the number of dispatch attempts made.
	Attempts int `json:"attempts"`
	// Reason explains rejection or blockage, if applicable.
	Reason string `json:"reason,omitempty"`
}

// FinalResult is the aggregated deliverable of a completed run.
type FinalResult struct {
	// RunID is the run this result belongs to.
	RunID string `json:"run_id"`
	// Verdict is the overall outcome.
	Verdict RunVerdict `json:"verdict"`
	// Deliverable is the merged output of all accepted chunks.
	Deliverable string `json:"deliverable"`
	// Manifest lists every chunk's fate.
	Manifest []ManifestEntry `json:"manifest"`
}

// RunSnapshot is a read-only view of a run's progress.
type RunSnapshot struct {
	// RunID identifies the run.
	RunID string `json:"run_id"`
	// RequestID identifies the originating request.
	RequestID string `json:"request_id"`
	// Score is the complexity assessment of the request.
	Score ComplexityScore `json:"score"`
	// Chunks are copies of every chunk in the run.
	Chunks []Chunk `json:"chunks"`
	// Assignments are the currently live assignments.
	Assignments []Assignment `json:"assignments,omitempty"`
	// Verdict is the terminal verdict, or VerdictNone while running.
	Verdict RunVerdict `json:"verdict"`
	// Result is the final result once the run is terminal.
	Result *FinalResult `json:"result,omitempty"`
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the run reached a terminal state, if it has.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Progress returns the fraction of chunks in a terminal state.
func (s *RunSnapshot) Progress() float64 {
	if len(s.Chunks) == 0 {
		return 0
	}
	done := 0
	for _, c := range s.Chunks {
		if c.State.Terminal() {
			done++
		}
	}
	return float64(done) / float64(len(s.Chunks))
}
