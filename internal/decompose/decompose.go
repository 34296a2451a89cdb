// Package decompose splits complex requests into a dependency-ordered set
// of work chunks.
package decompose

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/asheridan/loom/internal/config"
	"github.com/asheridan/loom/pkg/models"
)

// ErrDecomposition indicates the request could not be split into at least
// one well-formed chunk.
var ErrDecomposition = fmt.Errorf("decomposition failed")

// Decomposer turns a request into chunks with inferred dependencies.
type Decomposer struct {
	taxonomy *config.Taxonomy
	minUnits int
	maxUnits int
	debugLog func(format string, args ...interface{})
}

// Option configures a Decomposer.
type Option func(*Decomposer)

// WithLogger sets the debug logging function.
func WithLogger(fn func(format string, args ...interface{})) Option {
	return func(d *Decomposer) {
		if fn != nil {
			d.debugLog = fn
		}
	}
}

// New creates a Decomposer with the given taxonomy and chunk size bounds.
func New(taxonomy *config.Taxonomy, minUnits, maxUnits int, opts ...Option) *Decomposer {
	d := &Decomposer{
		taxonomy: taxonomy,
		minUnits: minUnits,
		maxUnits: maxUnits,
		debugLog: func(format string, args ...interface{}) {},
	}
	if d.minUnits < 1 {
		d.minUnits = 1
	}
	if d.maxUnits < d.minUnits {
		d.maxUnits = d.minUnits
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decompose splits the request into chunks. The returned set is always
// acyclic: contradictory ordering language is resolved by dropping the
// weakest inferred edge, never a chunk. An empty or unsplittable request
// returns ErrDecomposition.
func (d *Decomposer) Decompose(req *models.Request) ([]*models.Chunk, error) {
	goals := splitSubGoals(req.Description)
	if len(goals) == 0 {
		return nil, fmt.Errorf("%w: request yields no sub-goals", ErrDecomposition)
	}

	goals = coalesce(goals, d.minUnits, d.maxUnits)
	d.debugLog("[decompose] %d sub-goals after coalescing", len(goals))

	chunks := make([]*models.Chunk, 0, len(goals))
	for _, g := range goals {
		units := clampUnits(rawUnits(g.text), d.minUnits, d.maxUnits)
		chunk := &models.Chunk{
			ID:          uuid.New().String()[:8],
			RequestID:   req.ID,
			Description: g.text,
			Units:       units,
			Size:        models.SizeClassForUnits(units),
			State:       models.ChunkPending,
			Position:    g.position,
			Deliverable: hasDeliverable(g.text),
		}
		if d.taxonomy != nil {
			chunk.RequiredTags = d.taxonomy.MatchTags(g.text)
		}
		chunks = append(chunks, chunk)
	}

	for _, e := range inferEdges(goals, d.debugLog) {
		chunks[e.from].DependsOn = append(chunks[e.from].DependsOn, chunks[e.to].ID)
	}

	d.debugLog("[decompose] produced %d chunks for request %s", len(chunks), req.ID)
	return chunks, nil
}

// SingleChunk wraps a request that does not warrant decomposition in one
// chunk covering the whole description.
func (d *Decomposer) SingleChunk(req *models.Request) *models.Chunk {
	units := clampUnits(rawUnits(req.Description), d.minUnits, d.maxUnits)
	chunk := &models.Chunk{
		ID:          uuid.New().String()[:8],
		RequestID:   req.ID,
		Description: req.Description,
		Units:       units,
		Size:        models.SizeClassForUnits(units),
		State:       models.ChunkPending,
		Position:    0,
		Deliverable: hasDeliverable(req.Description),
	}
	if d.taxonomy != nil {
		chunk.RequiredTags = d.taxonomy.MatchTags(req.Description)
	}
	return chunk
}
