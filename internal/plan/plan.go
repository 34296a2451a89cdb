// Package plan assembles per-chunk execution plans from matched candidates
// and dispatch policy.
package plan

import (
	"time"

	"github.com/asheridan/loom/internal/config"
	"github.com/asheridan/loom/internal/match"
	"github.com/asheridan/loom/pkg/models"
)

// GateKind identifies a quality gate check.
type GateKind string

const (
	// GateContent checks a chunk's output is non-empty and substantive.
	GateContent GateKind = "content"
	// GateShape checks structured output parses for downstream consumers.
	GateShape GateKind = "shape"
	// GateExternal validates output against the lookup service.
	GateExternal GateKind = "external"
)

// RetryPolicy bounds how many times a failed chunk may be retried.
type RetryPolicy struct {
	// MaxRetries is the retry budget after the first attempt.
	MaxRetries int
}

// Exhausted reports whether the given attempt count has used up the budget.
// Attempts are 1-indexed: attempt 1 is the original dispatch.
func (p RetryPolicy) Exhausted(attempts int) bool {
	return attempts > p.MaxRetries
}

// ChunkPlan holds everything the orchestrator needs to dispatch one chunk.
type ChunkPlan struct {
	// ChunkID identifies the chunk.
	ChunkID string
	// Candidates lists capable agents in preference order. Empty means no
	// capable agent existed at planning time; the orchestrator blocks the
	// chunk immediately rather than polling.
	Candidates []match.Candidate
	// Timeout is the per-attempt execution deadline.
	Timeout time.Duration
	// Retry bounds re-dispatch after failure.
	Retry RetryPolicy
	// Gates lists the quality checks to run after execution.
	Gates []GateKind
}

// ExecutionPlan covers one run: every chunk's plan plus the concurrency cap.
type ExecutionPlan struct {
	// RequestID identifies the originating request.
	RequestID string
	// Chunks maps chunk ID to its plan.
	Chunks map[string]*ChunkPlan
	// MaxParallel caps how many chunks run concurrently.
	MaxParallel int
}

// Planner builds execution plans from dispatch and gate configuration.
type Planner struct {
	dispatch config.DispatchConfig
	gates    config.GatesConfig
}

// New creates a Planner.
func New(dispatch config.DispatchConfig, gates config.GatesConfig) *Planner {
	return &Planner{dispatch: dispatch, gates: gates}
}

// Build produces the execution plan for a run. Chunks with no capable agent
// get an empty candidate list rather than an error, so one unmatchable chunk
// never sinks the rest of the run.
func (p *Planner) Build(req *models.Request, chunks []*models.Chunk, agents []models.AgentInfo) *ExecutionPlan {
	maxParallel := req.Constraints.MaxParallel
	if maxParallel <= 0 {
		maxParallel = p.dispatch.MaxParallel
	}

	ep := &ExecutionPlan{
		RequestID:   req.ID,
		Chunks:      make(map[string]*ChunkPlan, len(chunks)),
		MaxParallel: maxParallel,
	}

	for _, c := range chunks {
		candidates, err := match.MatchCandidates(c, agents)
		if err != nil {
			candidates = nil
		}
		ep.Chunks[c.ID] = &ChunkPlan{
			ChunkID:    c.ID,
			Candidates: candidates,
			Timeout:    p.dispatch.TimeoutForSize(string(c.Size)),
			Retry:      RetryPolicy{MaxRetries: p.dispatch.MaxRetries},
			Gates:      p.gatesFor(c, chunks),
		}
	}

	return ep
}

// gatesFor selects the quality gates a chunk's output must pass.
func (p *Planner) gatesFor(c *models.Chunk, all []*models.Chunk) []GateKind {
	var gates []GateKind
	if p.gates.Content && c.Deliverable {
		gates = append(gates, GateContent)
	}
	if p.gates.Shape && c.FeedsDependents(all) {
		gates = append(gates, GateShape)
	}
	if p.gates.External {
		gates = append(gates, GateExternal)
	}
	return gates
}
