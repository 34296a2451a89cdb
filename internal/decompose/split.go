package decompose

import (
	"regexp"
	"strings"
)

// subGoal is a candidate unit of work carved out of the request text.
type subGoal struct {
	// text is the sub-goal's description.
	text string
	// position is the sub-goal's textual order in the request.
	position int
}

var (
	// listItem matches explicit bullet or numbered list entries.
	listItem = regexp.MustCompile(`(?m)^\s*(?:[-*]|\d+[.)])\s+(.+)$`)
	// sequenceBreaks split prose into ordered segments.
	sequenceBreaks = regexp.MustCompile(`(?i)\b(?:and then|then|after that|followed by|next,|finally,|finally)\b`)
)

// splitSubGoals splits request text into candidate sub-goals using structural
// markers. Explicit list items win; otherwise prose is split on sequence
// conjunctions. Text with no structural markers yields a single sub-goal.
func splitSubGoals(text string) []subGoal {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if items := listItem.FindAllStringSubmatch(text, -1); len(items) >= 2 {
		goals := make([]subGoal, 0, len(items))
		for i, m := range items {
			goals = append(goals, subGoal{text: strings.TrimSpace(m[1]), position: i})
		}
		return goals
	}

	segments := sequenceBreaks.Split(text, -1)
	var goals []subGoal
	for _, seg := range segments {
		seg = strings.Trim(seg, " \t\n.,;")
		if seg == "" {
			continue
		}
		goals = append(goals, subGoal{text: seg, position: len(goals)})
	}

	if len(goals) == 0 {
		return []subGoal{{text: text, position: 0}}
	}
	return goals
}
