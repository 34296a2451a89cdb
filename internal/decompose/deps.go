package decompose

import (
	"regexp"
	"sort"
	"strings"
)

// edge is a candidate dependency: goal from depends on goal to.
type edge struct {
	from       int
	to         int
	confidence float64
}

// Confidence levels for inferred edges. Explicit ordering language outranks
// shared-artifact heuristics, so contradictory text loses its weakest link
// when a cycle must be broken.
const (
	confidenceOrdering = 1.0
	confidenceArtifact = 0.5
)

var orderingRefs = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bafter\s+(?:the\s+)?([\w][\w\s-]{2,40})`),
	regexp.MustCompile(`(?i)\bonce\s+(?:the\s+)?([\w][\w\s-]{2,40})`),
	regexp.MustCompile(`(?i)\busing the (?:output|result)s?\s+of\s+(?:the\s+)?([\w][\w\s-]{2,40})`),
	regexp.MustCompile(`(?i)\bbased on\s+(?:the\s+)?([\w][\w\s-]{2,40})`),
}

// stopwords are ignored when matching a referent phrase against sub-goals.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "of": true,
	"to": true, "and": true, "for": true, "in": true, "on": true, "with": true,
	"it": true, "that": true, "this": true, "step": true, "task": true,
	"done": true, "complete": true, "completed": true, "finished": true,
	"exist": true, "exists": true, "ready": true,
}

// inferEdges derives dependency edges between sub-goals from ordering
// language and shared-artifact mentions, then removes any cycles by
// dropping the weakest-confidence edge in each cycle. warn is called once
// per broken edge; a chunk is never dropped.
func inferEdges(goals []subGoal, warn func(format string, args ...interface{})) []edge {
	var edges []edge

	// Explicit ordering language: "after X", "using the output of X".
	for i, g := range goals {
		for _, re := range orderingRefs {
			for _, m := range re.FindAllStringSubmatch(g.text, -1) {
				target := bestReferent(m[1], goals, i)
				if target >= 0 {
					edges = append(edges, edge{from: i, to: target, confidence: confidenceOrdering})
				}
			}
		}
	}

	// Shared-artifact heuristic: two sub-goals naming the same deliverable
	// are ordered by textual position.
	for i := 0; i < len(goals); i++ {
		for j := i + 1; j < len(goals); j++ {
			if sharesArtifact(goals[i].text, goals[j].text) {
				edges = append(edges, edge{from: j, to: i, confidence: confidenceArtifact})
			}
		}
	}

	edges = dedupeEdges(edges)
	return breakCycles(edges, len(goals), warn)
}

// bestReferent matches a referent phrase against the other sub-goals by
// significant-token overlap. Returns -1 when nothing matches.
func bestReferent(phrase string, goals []subGoal, self int) int {
	tokens := significantTokens(phrase)
	if len(tokens) == 0 {
		return -1
	}

	best, bestScore := -1, 0
	for i, g := range goals {
		if i == self {
			continue
		}
		lower := strings.ToLower(g.text)
		score := 0
		for _, tok := range tokens {
			if containsWord(lower, tok) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

// significantTokens lowercases and filters stopwords from a phrase.
func significantTokens(phrase string) []string {
	var tokens []string
	for _, tok := range strings.Fields(strings.ToLower(phrase)) {
		tok = strings.Trim(tok, ".,;:!?")
		if len(tok) < 3 || stopwords[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// sharesArtifact reports whether two texts name the same deliverable.
func sharesArtifact(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	for _, w := range deliverableWords {
		if containsWord(la, w) && containsWord(lb, w) {
			return true
		}
	}
	return false
}

// dedupeEdges drops duplicate edges, keeping the highest confidence, and
// discards self-edges.
func dedupeEdges(edges []edge) []edge {
	type key struct{ from, to int }
	best := make(map[key]float64)
	for _, e := range edges {
		if e.from == e.to {
			continue
		}
		k := key{e.from, e.to}
		if e.confidence > best[k] {
			best[k] = e.confidence
		}
	}

	out := make([]edge, 0, len(best))
	for k, conf := range best {
		out = append(out, edge{from: k.from, to: k.to, confidence: conf})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].from != out[j].from {
			return out[i].from < out[j].from
		}
		return out[i].to < out[j].to
	})
	return out
}

// breakCycles repeatedly finds a cycle and removes its weakest edge until
// the edge set is acyclic. Ties break toward the edge whose dependent sits
// latest in the text, preserving earlier-stated intent.
func breakCycles(edges []edge, n int, warn func(format string, args ...interface{})) []edge {
	for {
		cycle := findCycle(edges, n)
		if cycle == nil {
			return edges
		}

		weakest := -1
		for _, idx := range cycle {
			if weakest == -1 ||
				edges[idx].confidence < edges[weakest].confidence ||
				(edges[idx].confidence == edges[weakest].confidence && edges[idx].from > edges[weakest].from) {
				weakest = idx
			}
		}

		if warn != nil {
			warn("breaking dependency cycle: dropping edge %d->%d (confidence %.1f)",
				edges[weakest].from, edges[weakest].to, edges[weakest].confidence)
		}
		edges = append(edges[:weakest], edges[weakest+1:]...)
	}
}

// findCycle returns the indices (into edges) of the edges forming one cycle,
// or nil if the graph is acyclic.
func findCycle(edges []edge, n int) []int {
	adj := make(map[int][]int) // node -> indices of outgoing edges
	for i, e := range edges {
		adj[e.from] = append(adj[e.from], i)
	}

	colors := make([]int, n)
	parentEdge := make([]int, n)
	for i := range parentEdge {
		parentEdge[i] = -1
	}

	var cycle []int
	var visit func(node int) bool
	visit = func(node int) bool {
		colors[node] = 1
		for _, ei := range adj[node] {
			next := edges[ei].to
			switch colors[next] {
			case 1:
				// Back edge: walk parents from node back to next.
				cycle = append(cycle, ei)
				for cur := node; cur != next; cur = edges[parentEdge[cur]].from {
					cycle = append(cycle, parentEdge[cur])
				}
				return true
			case 0:
				parentEdge[next] = ei
				if visit(next) {
					return true
				}
			}
		}
		colors[node] = 2
		return false
	}

	for node := 0; node < n; node++ {
		if colors[node] == 0 {
			if visit(node) {
				return cycle
			}
		}
	}
	return nil
}
