// Package engine coordinates assessment, decomposition, planning, and
// supervised execution of submitted requests.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/asheridan/loom/internal/aggregate"
	"github.com/asheridan/loom/internal/assess"
	"github.com/asheridan/loom/internal/config"
	"github.com/asheridan/loom/internal/decompose"
	"github.com/asheridan/loom/internal/exec"
	"github.com/asheridan/loom/internal/gate"
	"github.com/asheridan/loom/internal/graph"
	"github.com/asheridan/loom/internal/plan"
	"github.com/asheridan/loom/internal/registry"
	"github.com/asheridan/loom/internal/research"
	"github.com/asheridan/loom/pkg/models"
)

// ErrRunNotFound indicates the given run ID is unknown to this engine.
var ErrRunNotFound = errors.New("run not found")

// Sink receives terminal run snapshots for persistence.
type Sink interface {
	SaveRun(ctx context.Context, snap *models.RunSnapshot) error
}

// Engine is the top-level orchestration engine. One engine serves many
// concurrent runs; each run gets its own supervisor goroutine, which is the
// only writer of that run's chunk state.
type Engine struct {
	cfg        *config.Config
	taxonomy   *config.Taxonomy
	assessor   *assess.Assessor
	decomposer *decompose.Decomposer
	planner    *plan.Planner
	agents     *registry.Cache
	evaluator  *gate.Evaluator
	aggregator *aggregate.Aggregator
	executor   exec.Executor
	emitter    *EventEmitter
	sink       Sink
	stopWatch  func()

	mu   sync.RWMutex
	runs map[string]*run
}

// Option configures an Engine.
type Option func(*Engine)

// WithSink wires a persistence sink for terminal runs.
func WithSink(s Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithEvaluator replaces the default gate evaluator.
func WithEvaluator(ev *gate.Evaluator) Option {
	return func(e *Engine) { e.evaluator = ev }
}

// WithMergeStrategy replaces the default aggregation strategy.
func WithMergeStrategy(s aggregate.MergeStrategy) Option {
	return func(e *Engine) { e.aggregator = aggregate.New(s) }
}

// WithDebugLogger installs a debug logger for engine internals.
func WithDebugLogger(l *DebugLogger) Option {
	return func(e *Engine) { setPackageLogger(l) }
}

// New creates an Engine over the given agent source and executor.
func New(cfg *config.Config, agents registry.Lister, executor exec.Executor, opts ...Option) *Engine {
	taxonomy := config.DefaultTaxonomy()
	if cfg.Taxonomy.Path != "" {
		if loaded, err := config.LoadTaxonomy(cfg.Taxonomy.Path); err == nil {
			taxonomy = loaded
		} else {
			debugLog("[engine] taxonomy load failed, using built-in: %v", err)
		}
	}

	gateOpts := []gate.Option{gate.WithLogger(debugLog)}
	if cfg.Research.URL != "" {
		gateOpts = append(gateOpts,
			gate.WithLookup(research.NewHTTPClient(cfg.Research.URL, cfg.Research.Timeout)))
	}

	e := &Engine{
		cfg:      cfg,
		taxonomy: taxonomy,
		assessor: assess.New(cfg.Assess.DecompositionThreshold, taxonomy),
		decomposer: decompose.New(taxonomy, cfg.Chunks.MinUnits, cfg.Chunks.MaxUnits,
			decompose.WithLogger(debugLog)),
		planner:    plan.New(cfg.Dispatch, cfg.Gates),
		agents:     registry.NewCache(agents, cfg.Registry.SnapshotTTL),
		evaluator:  gate.New(gateOpts...),
		aggregator: aggregate.New(nil),
		executor:   executor,
		emitter:    NewEventEmitter(256),
		runs:       make(map[string]*run),
	}
	for _, opt := range opts {
		opt(e)
	}

	if cfg.Taxonomy.Watch && cfg.Taxonomy.Path != "" {
		stop, err := taxonomy.Watch(cfg.Taxonomy.Path, func(err error) {
			debugLog("[engine] taxonomy reload failed: %v", err)
		})
		if err != nil {
			debugLog("[engine] taxonomy watch unavailable: %v", err)
		} else {
			e.stopWatch = stop
		}
	}
	return e
}

// Submit validates, assesses, decomposes, and plans a request, then starts
// its supervisor. It returns the run ID immediately; execution proceeds in
// the background. Validation and decomposition failures reject the request
// before anything is dispatched.
func (e *Engine) Submit(ctx context.Context, req *models.Request) (string, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()[:8]
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = time.Now()
	}

	if err := req.Validate(); err != nil {
		return "", err
	}

	score := e.assessor.Assess(req)
	debugLog("[engine.Submit] request %s scored %.2f (decompose=%v)",
		req.ID, score.Aggregate, score.RecommendDecomposition)

	var chunks []*models.Chunk
	if score.RecommendDecomposition {
		var err error
		chunks, err = e.decomposer.Decompose(req)
		if err != nil {
			e.emitter.Emit(Event{
				Type:      EventRunFailed,
				RunID:     req.ID,
				Error:     err,
				Message:   "decomposition failed",
				Timestamp: time.Now(),
			})
			return "", err
		}
	} else {
		chunks = []*models.Chunk{e.decomposer.SingleChunk(req)}
	}
	now := time.Now()
	for _, c := range chunks {
		c.CreatedAt = now
	}

	g := graph.New()
	g.SetDebugLog(debugLog)
	if err := g.Build(chunks); err != nil {
		wrapped := fmt.Errorf("%w: %v", decompose.ErrDecomposition, err)
		e.emitter.Emit(Event{
			Type:      EventRunFailed,
			RunID:     req.ID,
			Error:     wrapped,
			Message:   "dependency graph rejected",
			Timestamp: time.Now(),
		})
		return "", wrapped
	}

	pool, err := e.agents.Snapshot(ctx)
	if err != nil {
		debugLog("[engine.Submit] registry snapshot failed, treating pool as empty: %v", err)
	}

	ep := e.planner.Build(req, chunks, pool)

	r := newRun(uuid.New().String()[:8], req, score, g, ep, pool)
	e.mu.Lock()
	e.runs[r.id] = r
	e.mu.Unlock()

	go e.runLoop(r)
	return r.id, nil
}

// GetStatus returns a point-in-time snapshot of a run. It never blocks on
// the run's supervisor.
func (e *Engine) GetStatus(runID string) (*models.RunSnapshot, error) {
	e.mu.RLock()
	r, ok := e.runs[runID]
	e.mu.RUnlock()
	if !ok {
		return nil, ErrRunNotFound
	}
	snap := r.currentSnapshot()
	return &snap, nil
}

// Cancel requests cancellation of a run. It is idempotent: cancelling an
// already-cancelled or finished run is a no-op.
func (e *Engine) Cancel(runID string) error {
	e.mu.RLock()
	r, ok := e.runs[runID]
	e.mu.RUnlock()
	if !ok {
		return ErrRunNotFound
	}
	r.requestCancel()
	return nil
}

// Wait blocks until the run reaches a terminal verdict or the context ends.
func (e *Engine) Wait(ctx context.Context, runID string) (*models.RunSnapshot, error) {
	e.mu.RLock()
	r, ok := e.runs[runID]
	e.mu.RUnlock()
	if !ok {
		return nil, ErrRunNotFound
	}

	select {
	case <-r.done:
		snap := r.currentSnapshot()
		return &snap, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Events returns the engine's event stream.
func (e *Engine) Events() <-chan Event {
	return e.emitter.Events()
}

// Close cancels every live run and closes the event stream.
func (e *Engine) Close() {
	e.mu.RLock()
	runs := make([]*run, 0, len(e.runs))
	for _, r := range e.runs {
		runs = append(runs, r)
	}
	e.mu.RUnlock()

	for _, r := range runs {
		r.requestCancel()
	}
	for _, r := range runs {
		<-r.done
	}
	if e.stopWatch != nil {
		e.stopWatch()
	}
	e.emitter.Close()
}
