// Package match ranks registered agents against a chunk's capability needs.
package match

import (
	"errors"
	"sort"

	"github.com/asheridan/loom/pkg/models"
)

// ErrNoCapableAgent indicates no registered agent can serve a chunk's
// required capability tags.
var ErrNoCapableAgent = errors.New("no capable agent")

// Score weights. Capability fit dominates; idle headroom breaks near-ties.
const (
	weightTagOverlap = 0.7
	weightIdle       = 0.3
)

// Candidate is one agent scored against a chunk.
type Candidate struct {
	// AgentID identifies the agent.
	AgentID string
	// Score is the composite match score in [0,1].
	Score float64
}

// MatchCandidates scores every agent in the snapshot against the chunk and
// returns candidates in descending score order, ties broken by lower
// current load, then by agent ID for determinism. Agents with zero tag
// overlap are excluded unless the chunk declares no required tags.
// Returns ErrNoCapableAgent when no agent qualifies.
func MatchCandidates(chunk *models.Chunk, agents []models.AgentInfo) ([]Candidate, error) {
	type scored struct {
		Candidate
		load int
	}

	var ranked []scored
	for _, a := range agents {
		overlap := tagOverlapRatio(chunk.RequiredTags, a)
		if len(chunk.RequiredTags) > 0 && overlap == 0 {
			continue
		}
		ranked = append(ranked, scored{
			Candidate: Candidate{
				AgentID: a.ID,
				Score:   weightTagOverlap*overlap + weightIdle*a.IdleRatio(),
			},
			load: a.CurrentLoad,
		})
	}

	if len(ranked) == 0 {
		return nil, ErrNoCapableAgent
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].load != ranked[j].load {
			return ranked[i].load < ranked[j].load
		}
		return ranked[i].AgentID < ranked[j].AgentID
	})

	out := make([]Candidate, len(ranked))
	for i, r := range ranked {
		out[i] = r.Candidate
	}
	return out, nil
}

// tagOverlapRatio is the fraction of the chunk's required tags the agent
// declares. A chunk with no required tags matches every agent fully.
func tagOverlapRatio(required []string, agent models.AgentInfo) float64 {
	if len(required) == 0 {
		return 1.0
	}
	hits := 0
	for _, tag := range required {
		if agent.HasTag(tag) {
			hits++
		}
	}
	return float64(hits) / float64(len(required))
}
