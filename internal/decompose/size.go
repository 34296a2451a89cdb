package decompose

import "strings"

// deliverableWords name artifacts a chunk is expected to produce. Each named
// deliverable counts as one work unit in the sizing rubric.
var deliverableWords = []string{
	"report", "document", "documentation", "readme", "guide", "summary",
	"api", "endpoint", "schema", "migration", "module", "component",
	"page", "dashboard", "pipeline", "dataset", "spec", "diagram",
}

// wordsPerUnit is the rubric's prose-length contribution: one work unit
// per this many words.
const wordsPerUnit = 40

// rawUnits estimates a sub-goal's effort without clamping. May return 0
// for trivial sub-goals, which the coalescing pass merges away.
func rawUnits(text string) int {
	words := len(strings.Fields(text))
	return words/wordsPerUnit + countDeliverables(text)
}

// countDeliverables counts named deliverables mentioned in the text.
func countDeliverables(text string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, w := range deliverableWords {
		if containsWord(lower, w) {
			count++
		}
	}
	return count
}

// hasDeliverable reports whether the text names any externally visible artifact.
func hasDeliverable(text string) bool {
	return countDeliverables(text) > 0
}

// coalesce merges adjacent trivial sub-goals until every sub-goal's raw
// estimate is at least minUnits, without growing any merged sub-goal past
// maxUnits. The last sub-goal merges backward when it is trivial.
func coalesce(goals []subGoal, minUnits, maxUnits int) []subGoal {
	if len(goals) <= 1 {
		return goals
	}

	var out []subGoal
	for _, g := range goals {
		if len(out) > 0 {
			prev := &out[len(out)-1]
			prevRaw := rawUnits(prev.text)
			// Merge forward: a trivial predecessor absorbs this goal.
			// Merge backward: a trivial current goal joins its predecessor.
			if (prevRaw < minUnits || rawUnits(g.text) < minUnits) &&
				prevRaw+rawUnits(g.text) <= maxUnits {
				prev.text = prev.text + "; " + g.text
				continue
			}
		}
		out = append(out, g)
	}

	// Renumber positions after merging.
	for i := range out {
		out[i].position = i
	}
	return out
}

// clampUnits bounds a raw estimate to the configured chunk size range.
func clampUnits(raw, minUnits, maxUnits int) int {
	if raw < minUnits {
		return minUnits
	}
	if raw > maxUnits {
		return maxUnits
	}
	return raw
}

// containsWord reports whether text contains kw as a whole word.
func containsWord(text, kw string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], kw)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(kw)
		beforeOK := start == 0 || !isWordByte(text[start-1])
		afterOK := end == len(text) || !isWordByte(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
