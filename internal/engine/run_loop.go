package engine

import (
	"context"
	"sync"
	"time"

	"github.com/asheridan/loom/internal/graph"
	"github.com/asheridan/loom/internal/plan"
	"github.com/asheridan/loom/pkg/models"
)

// run holds one request's execution state. The supervisor goroutine is the
// only writer of chunk state; readers see published snapshots.
type run struct {
	id    string
	req   *models.Request
	score models.ComplexityScore
	graph *graph.DependencyGraph
	plan  *plan.ExecutionPlan
	pool  map[string]models.AgentInfo

	mu       sync.RWMutex
	snapshot models.RunSnapshot

	cancelOnce sync.Once
	cancelCh   chan struct{}
	done       chan struct{}
}

func newRun(id string, req *models.Request, score models.ComplexityScore,
	g *graph.DependencyGraph, ep *plan.ExecutionPlan, pool []models.AgentInfo) *run {

	byID := make(map[string]models.AgentInfo, len(pool))
	for _, a := range pool {
		byID[a.ID] = a
	}

	r := &run{
		id:       id,
		req:      req,
		score:    score,
		graph:    g,
		plan:     ep,
		pool:     byID,
		cancelCh: make(chan struct{}),
		done:     make(chan struct{}),
		snapshot: models.RunSnapshot{
			RunID:     id,
			RequestID: req.ID,
			Score:     score,
			StartedAt: time.Now(),
		},
	}
	return r
}

// requestCancel signals the supervisor to stop. Safe to call any number of
// times, before or after the run finishes.
func (r *run) requestCancel() {
	r.cancelOnce.Do(func() { close(r.cancelCh) })
}

// currentSnapshot returns a copy of the last published snapshot.
func (r *run) currentSnapshot() models.RunSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := r.snapshot
	snap.Chunks = append([]models.Chunk(nil), r.snapshot.Chunks...)
	snap.Assignments = append([]models.Assignment(nil), r.snapshot.Assignments...)
	return snap
}

// completion is a worker goroutine's report back to the supervisor.
type completion struct {
	chunkID string
	agentID string
	output  string
	err     error
}

// gateResult is a gate goroutine's report back to the supervisor.
type gateResult struct {
	chunkID string
	agentID string
	verdict gateVerdict
}

// gateVerdict mirrors the evaluator's verdict without importing it here.
type gateVerdict struct {
	accepted bool
	reason   string
	warnings []string
}

// runLoop is the supervisor for one run. All chunk state transitions happen
// here; workers and gate evaluations run in goroutines and report back over
// channels.
func (e *Engine) runLoop(r *run) {
	defer close(r.done)

	capacity := r.graph.Size() * (e.cfg.Dispatch.MaxRetries + 1)
	completionCh := make(chan completion, capacity)
	gateCh := make(chan gateResult, capacity)

	runCtx, cancelWorkers := context.WithCancel(context.Background())
	if !r.req.Constraints.Deadline.IsZero() {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, r.req.Constraints.Deadline)
		defer cancelDeadline()
	}
	defer cancelWorkers()

	inflight := make(map[string]models.Assignment)
	agentLoad := make(map[string]int)
	pendingGates := 0

	poll := e.cfg.Dispatch.PollInterval
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}

	e.publish(r, inflight)
	debugLog("[run %s] supervisor started: %d chunks, max parallel %d",
		r.id, r.graph.Size(), r.plan.MaxParallel)

	for {
		e.dispatchReady(r, runCtx, inflight, agentLoad, completionCh)

		// Nothing running and nothing awaiting gates means nothing can
		// change: finish, blocking whatever could not be dispatched.
		if len(inflight) == 0 && pendingGates == 0 {
			if !e.allTerminal(r) {
				e.blockUnreachable(r, inflight)
			}
			e.finalize(r, inflight, false)
			return
		}

		select {
		case c := <-completionCh:
			delete(inflight, c.chunkID)
			agentLoad[c.agentID]--
			e.handleCompletion(r, runCtx, c, inflight, gateCh, &pendingGates)

		case g := <-gateCh:
			pendingGates--
			e.handleGate(r, g, inflight)

		case <-r.cancelCh:
			cancelWorkers()
			e.finalize(r, inflight, true)
			return

		case <-time.After(poll):
		}
	}
}

// dispatchReady dispatches every ready chunk that fits under the run's
// concurrency cap and an agent's free capacity.
func (e *Engine) dispatchReady(r *run, ctx context.Context, inflight map[string]models.Assignment,
	agentLoad map[string]int, completionCh chan<- completion) {

	for _, id := range r.graph.GetReady() {
		if _, running := inflight[id]; running {
			continue
		}
		if len(inflight) >= r.plan.MaxParallel {
			return
		}

		chunk := r.graph.GetChunk(id)
		cp := r.plan.Chunks[id]
		if cp == nil || len(cp.Candidates) == 0 {
			// No capable agent: block now rather than letting the chunk
			// and its dependents hang.
			e.setBlocked(r, chunk, "no capable agent for required tags", inflight)
			e.blockDependents(r, id, "dependency blocked: "+id, inflight)
			continue
		}

		agent, ok := e.pickAgent(r, cp, chunk.Attempts, agentLoad)
		if !ok {
			// Every candidate is at capacity; try again next pass.
			continue
		}

		chunk.Attempts++
		assignment := models.Assignment{
			ChunkID:   id,
			AgentID:   agent.ID,
			Attempt:   chunk.Attempts,
			StartedAt: time.Now(),
			Deadline:  time.Now().Add(cp.Timeout),
		}
		inflight[id] = assignment
		agentLoad[agent.ID]++

		e.setState(r, chunk, models.ChunkDispatched, agent.ID, "", inflight)
		e.setState(r, chunk, models.ChunkRunning, agent.ID, "", inflight)
		debugLog("[run %s] dispatched chunk %s to agent %s (attempt %d)",
			r.id, id, agent.ID, chunk.Attempts)

		chunkCopy := *chunk
		go func(a models.AgentInfo, c models.Chunk, timeout time.Duration) {
			execCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			out, err := e.executor.Execute(execCtx, &c, a)
			completionCh <- completion{chunkID: c.ID, agentID: a.ID, output: out, err: err}
		}(agent, chunkCopy, cp.Timeout)
	}
}

// pickAgent selects the best candidate with free capacity, rotating by
// attempt count so retries land on a different agent when one exists.
func (e *Engine) pickAgent(r *run, cp *plan.ChunkPlan, attempts int, agentLoad map[string]int) (models.AgentInfo, bool) {
	n := len(cp.Candidates)
	for i := 0; i < n; i++ {
		cand := cp.Candidates[(attempts+i)%n]
		agent, ok := r.pool[cand.AgentID]
		if !ok {
			continue
		}
		if agent.CurrentLoad+agentLoad[agent.ID] >= agent.Capacity {
			continue
		}
		return agent, true
	}
	return models.AgentInfo{}, false
}

// handleCompletion routes a worker's result: success goes to gate
// evaluation, failure goes to retry or rejection.
func (e *Engine) handleCompletion(r *run, ctx context.Context, c completion,
	inflight map[string]models.Assignment, gateCh chan<- gateResult, pendingGates *int) {

	chunk := r.graph.GetChunk(c.chunkID)
	if chunk == nil || chunk.State.Terminal() {
		return
	}

	if c.err != nil {
		debugLog("[run %s] chunk %s attempt %d failed: %v", r.id, c.chunkID, chunk.Attempts, c.err)
		e.setState(r, chunk, models.ChunkFailed, c.agentID, c.err.Error(), inflight)
		e.retryOrReject(r, chunk, c.err.Error(), inflight)
		return
	}

	chunk.Output = c.output
	e.setState(r, chunk, models.ChunkGated, c.agentID, "", inflight)

	cp := r.plan.Chunks[c.chunkID]
	gates := cp.Gates
	*pendingGates++

	chunkCopy := *chunk
	go func() {
		v := e.evaluator.Evaluate(ctx, &chunkCopy, gates)
		gateCh <- gateResult{
			chunkID: chunkCopy.ID,
			agentID: c.agentID,
			verdict: gateVerdict{accepted: v.Accepted, reason: v.Reason, warnings: v.Warnings},
		}
	}()
}

// handleGate applies a gate verdict: acceptance unlocks dependents, a
// failing gate consumes a retry.
func (e *Engine) handleGate(r *run, g gateResult, inflight map[string]models.Assignment) {
	chunk := r.graph.GetChunk(g.chunkID)
	if chunk == nil || chunk.State.Terminal() {
		return
	}

	chunk.GateWarnings = append(chunk.GateWarnings, g.verdict.warnings...)
	if g.verdict.accepted {
		e.setState(r, chunk, models.ChunkAccepted, g.agentID, "", inflight)
		r.graph.MarkAccepted(g.chunkID)
		return
	}

	debugLog("[run %s] chunk %s rejected by gate: %s", r.id, g.chunkID, g.verdict.reason)
	e.setState(r, chunk, models.ChunkFailed, g.agentID, g.verdict.reason, inflight)
	e.retryOrReject(r, chunk, g.verdict.reason, inflight)
}

// retryOrReject re-queues a failed chunk while budget remains, otherwise
// rejects it and blocks everything downstream.
func (e *Engine) retryOrReject(r *run, chunk *models.Chunk, reason string, inflight map[string]models.Assignment) {
	cp := r.plan.Chunks[chunk.ID]
	if !cp.Retry.Exhausted(chunk.Attempts) {
		e.setState(r, chunk, models.ChunkReady, "", "retrying", inflight)
		return
	}

	chunk.BlockedReason = reason
	e.setState(r, chunk, models.ChunkRejected, "", reason, inflight)
	e.blockDependents(r, chunk.ID, "dependency rejected: "+chunk.ID, inflight)
}

// blockDependents marks every transitive dependent of a failed chunk as
// blocked, leaving independent chunks untouched.
func (e *Engine) blockDependents(r *run, chunkID, reason string, inflight map[string]models.Assignment) {
	for _, depID := range r.graph.TransitiveDependents(chunkID) {
		dep := r.graph.GetChunk(depID)
		if dep == nil || dep.State.Terminal() {
			continue
		}
		if _, running := inflight[depID]; running {
			continue
		}
		e.setBlocked(r, dep, reason, inflight)
	}
}

// blockUnreachable blocks every non-terminal chunk that can no longer make
// progress. Safety net against supervisor stalls.
func (e *Engine) blockUnreachable(r *run, inflight map[string]models.Assignment) {
	for _, chunk := range r.graph.AllChunks() {
		if chunk.State.Terminal() {
			continue
		}
		e.setBlocked(r, chunk, "no path to execution: dependencies or agent capacity unavailable", inflight)
	}
}

func (e *Engine) setBlocked(r *run, chunk *models.Chunk, reason string, inflight map[string]models.Assignment) {
	chunk.BlockedReason = reason
	e.setState(r, chunk, models.ChunkBlocked, "", reason, inflight)
}

// setState applies a chunk state transition, publishes a fresh snapshot,
// and emits the state-change event.
func (e *Engine) setState(r *run, chunk *models.Chunk, state models.ChunkState,
	agentID, message string, inflight map[string]models.Assignment) {

	chunk.State = state
	e.publish(r, inflight)
	e.emitter.Emit(Event{
		Type:      EventChunkStateChanged,
		RunID:     r.id,
		ChunkID:   chunk.ID,
		AgentID:   agentID,
		State:     state,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// finalize marks any remaining chunks cancelled, aggregates the result, and
// publishes the terminal snapshot.
func (e *Engine) finalize(r *run, inflight map[string]models.Assignment, cancelled bool) {
	if cancelled {
		for _, chunk := range r.graph.AllChunks() {
			if chunk.State.Terminal() {
				continue
			}
			e.setState(r, chunk, models.ChunkCancelled, "", "run cancelled", inflight)
		}
	}

	result := e.aggregator.Aggregate(r.id, r.graph.AllChunks(), cancelled)
	now := time.Now()

	r.mu.Lock()
	r.snapshot.Verdict = result.Verdict
	r.snapshot.Result = result
	r.snapshot.FinishedAt = &now
	r.snapshot.Assignments = nil
	r.mu.Unlock()

	e.emitter.Emit(Event{
		Type:      EventRunCompleted,
		RunID:     r.id,
		Verdict:   result.Verdict,
		Message:   string(result.Verdict),
		Timestamp: now,
	})
	debugLog("[run %s] finished with verdict %s", r.id, result.Verdict)

	if e.sink != nil {
		snap := r.currentSnapshot()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.sink.SaveRun(ctx, &snap); err != nil {
			debugLog("[run %s] persistence failed: %v", r.id, err)
		}
	}
}

// allTerminal reports whether every chunk has reached a terminal state.
func (e *Engine) allTerminal(r *run) bool {
	for _, chunk := range r.graph.AllChunks() {
		if !chunk.State.Terminal() {
			return false
		}
	}
	return true
}

// publish copies the run's live state into the snapshot readers see.
func (e *Engine) publish(r *run, inflight map[string]models.Assignment) {
	chunks := r.graph.AllChunks()
	copies := make([]models.Chunk, 0, len(chunks))
	for _, c := range chunks {
		copies = append(copies, *c)
	}

	assignments := make([]models.Assignment, 0, len(inflight))
	for _, a := range inflight {
		assignments = append(assignments, a)
	}

	r.mu.Lock()
	r.snapshot.Chunks = copies
	r.snapshot.Assignments = assignments
	r.mu.Unlock()
}
