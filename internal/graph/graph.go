// Package graph provides the dependency DAG over decomposed chunks.
package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/asheridan/loom/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found among chunks.
var ErrCycleDetected = errors.New("circular dependency detected")

// DependencyGraph is a directed acyclic graph of chunk dependencies.
// Chunks are nodes, and edges represent "blocked by" relationships.
type DependencyGraph struct {
	mu sync.RWMutex
	// nodes maps chunk ID to the chunk itself.
	nodes map[string]*models.Chunk
	// edges maps chunk ID to IDs of chunks it depends on (is blocked by).
	edges map[string][]string
	// accepted tracks which chunks have passed their quality gates.
	accepted map[string]bool
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:    make(map[string]*models.Chunk),
		edges:    make(map[string][]string),
		accepted: make(map[string]bool),
		debugLog: func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the dependency graph from a slice of chunks.
// Returns an error if a cycle is detected or a dependency references an
// unknown chunk; a chunk that can never become ready must fail fast here
// rather than hang the run.
func (g *DependencyGraph) Build(chunks []*models.Chunk) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.Build] building graph from %d chunks", len(chunks))

	for _, c := range chunks {
		g.nodes[c.ID] = c
		g.edges[c.ID] = nil
	}

	for _, c := range chunks {
		for _, depID := range c.DependsOn {
			if _, exists := g.nodes[depID]; !exists {
				return fmt.Errorf("chunk %s depends on unknown chunk %s", c.ID, depID)
			}
			g.edges[c.ID] = append(g.edges[c.ID], depID)
		}
	}

	if g.hasCycleLocked() {
		return ErrCycleDetected
	}

	g.debugLog("[graph.Build] graph built with %d nodes", len(g.nodes))
	return nil
}

// HasCycle returns true if the graph contains a circular dependency.
// Uses depth-first search with coloring to detect back edges.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

// hasCycleLocked is the internal implementation that assumes the lock is held.
func (g *DependencyGraph) hasCycleLocked() bool {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int)
	for id := range g.nodes {
		colors[id] = 0
	}

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1

		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}

		colors[id] = 2
		return false
	}

	for id := range g.nodes {
		if colors[id] == 0 {
			if visit(id) {
				return true
			}
		}
	}

	return false
}

// TopologicalSort returns chunk IDs in an order where all dependencies come
// before the chunks that depend on them. Ties are resolved by the chunks'
// textual position so aggregation output is deterministic.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.hasCycleLocked() {
		return nil, ErrCycleDetected
	}

	order := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		order = append(order, id)
	}
	sortByPosition(order, g.nodes)

	visited := make(map[string]bool)
	var result []string

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true

		deps := append([]string(nil), g.edges[id]...)
		sortByPosition(deps, g.nodes)
		for _, depID := range deps {
			visit(depID)
		}

		result = append(result, id)
	}

	for _, id := range order {
		visit(id)
	}

	return result, nil
}

// GetReady returns IDs of chunks whose predecessors have all been accepted
// and which are themselves still pending. These chunks can run in parallel.
func (g *DependencyGraph) GetReady() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []string

	for id, c := range g.nodes {
		if c.State != models.ChunkPending && c.State != models.ChunkReady {
			continue
		}

		allAccepted := true
		for _, depID := range g.edges[id] {
			if !g.accepted[depID] {
				allAccepted = false
				break
			}
		}

		if allAccepted {
			ready = append(ready, id)
		}
	}

	sortByPosition(ready, g.nodes)
	g.debugLog("[graph.GetReady] %d ready chunks: %v", len(ready), ready)
	return ready
}

// MarkAccepted records that a chunk passed its quality gates.
// This affects subsequent calls to GetReady.
func (g *DependencyGraph) MarkAccepted(chunkID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.accepted[chunkID] = true
	g.debugLog("[graph.MarkAccepted] chunk %s accepted", chunkID)
}

// IsAccepted returns true if the chunk has been marked accepted.
func (g *DependencyGraph) IsAccepted(chunkID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.accepted[chunkID]
}

// GetChunk returns the chunk for a given ID, or nil if not found.
func (g *DependencyGraph) GetChunk(chunkID string) *models.Chunk {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[chunkID]
}

// Size returns the number of chunks in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// AllChunks returns every chunk in the graph, ordered by textual position.
func (g *DependencyGraph) AllChunks() []*models.Chunk {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sortByPosition(ids, g.nodes)

	chunks := make([]*models.Chunk, 0, len(ids))
	for _, id := range ids {
		chunks = append(chunks, g.nodes[id])
	}
	return chunks
}

// GetDependencies returns the IDs of chunks the given chunk depends on.
func (g *DependencyGraph) GetDependencies(chunkID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[chunkID]
}

// GetDependents returns the IDs of chunks that depend on the given chunk.
func (g *DependencyGraph) GetDependents(chunkID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []string
	for id, deps := range g.edges {
		for _, depID := range deps {
			if depID == chunkID {
				dependents = append(dependents, id)
				break
			}
		}
	}
	return dependents
}

// TransitiveDependents returns every chunk downstream of the given chunk,
// direct or indirect. Used to propagate blockage when a chunk is rejected.
func (g *DependencyGraph) TransitiveDependents(chunkID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]bool)
	var result []string

	var walk func(id string)
	walk = func(id string) {
		for nodeID, deps := range g.edges {
			for _, depID := range deps {
				if depID == id && !seen[nodeID] {
					seen[nodeID] = true
					result = append(result, nodeID)
					walk(nodeID)
				}
			}
		}
	}

	walk(chunkID)
	return result
}

// sortByPosition orders chunk IDs by their textual position, then by ID.
func sortByPosition(ids []string, nodes map[string]*models.Chunk) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && less(nodes[ids[j]], nodes[ids[j-1]]); j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

func less(a, b *models.Chunk) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Position != b.Position {
		return a.Position < b.Position
	}
	return a.ID < b.ID
}
