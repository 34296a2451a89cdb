// Package assess scores the complexity of incoming requests.
package assess

import (
	"regexp"
	"strings"
	"time"

	"github.com/asheridan/loom/internal/config"
	"github.com/asheridan/loom/pkg/models"
)

// Dimension weights for the aggregate score.
const (
	weightStructural   = 0.35
	weightResource     = 0.25
	weightTimeline     = 0.20
	weightCoordination = 0.20
)

// Assessor computes complexity scores for requests.
// Assess is a pure function of the request; the assessor only carries
// compiled patterns and the configured decomposition threshold.
type Assessor struct {
	threshold        float64
	taxonomy         *config.Taxonomy
	listMarkers      *regexp.Regexp
	phasePatterns    []*regexp.Regexp
	orderingPatterns []*regexp.Regexp
	urgencyPatterns  []*regexp.Regexp
}

// New creates an Assessor with the given decomposition threshold and taxonomy.
func New(threshold float64, taxonomy *config.Taxonomy) *Assessor {
	return &Assessor{
		threshold:   threshold,
		taxonomy:    taxonomy,
		listMarkers: regexp.MustCompile(`(?m)^\s*(?:[-*]|\d+[.)])\s+`),
		phasePatterns: compilePatterns([]string{
			`\b(first|second|third|finally|lastly)\b`,
			`\b(phase|stage|step)\s+\d+\b`,
			`\b(and then|after that|followed by)\b`,
		}),
		orderingPatterns: compilePatterns([]string{
			`\bafter\b`,
			`\bonce\b`,
			`\busing the (output|result)s? of\b`,
			`\bbased on\b`,
			`\bdepends on\b`,
			`\bbefore\b`,
		}),
		urgencyPatterns: compilePatterns([]string{
			`\b(urgent|urgently|asap|immediately)\b`,
			`\b(deadline|due)\b`,
			`\bby (tomorrow|today|tonight|end of day|eod)\b`,
		}),
	}
}

// compilePatterns compiles a slice of pattern strings into case-insensitive regexps.
func compilePatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if r, err := regexp.Compile("(?i)" + p); err == nil {
			compiled = append(compiled, r)
		}
	}
	return compiled
}

// Assess scores a request on four 0-10 dimensions and recommends whether
// decomposition is warranted. It never fails: degenerate input yields the
// minimum score and a direct-execution recommendation.
func (a *Assessor) Assess(req *models.Request) models.ComplexityScore {
	text := strings.TrimSpace(req.Description)
	if text == "" {
		return models.ComplexityScore{}
	}

	score := models.ComplexityScore{
		Structural:   a.structuralScore(text),
		Resource:     a.resourceScore(text),
		Timeline:     a.timelineScore(req),
		Coordination: a.coordinationScore(text, req),
	}

	score.Aggregate = weightStructural*float64(score.Structural) +
		weightResource*float64(score.Resource) +
		weightTimeline*float64(score.Timeline) +
		weightCoordination*float64(score.Coordination)
	score.RecommendDecomposition = score.Aggregate >= a.threshold

	return score
}

// structuralScore measures how many distinct sub-goals the text implies:
// explicit list items, phase keywords, and overall length.
func (a *Assessor) structuralScore(text string) int {
	markers := len(a.listMarkers.FindAllString(text, -1))
	for _, p := range a.phasePatterns {
		markers += len(p.FindAllString(text, -1))
	}

	words := len(strings.Fields(text))
	lengthScore := words / 40 // one point per ~40 words

	return clamp(markers*2+lengthScore, 0, 10)
}

// resourceScore measures how many distinct capability domains and
// deliverables the request touches.
func (a *Assessor) resourceScore(text string) int {
	domains := 0
	if a.taxonomy != nil {
		domains = len(a.taxonomy.MatchTags(text))
	}
	return clamp(domains*3, 0, 10)
}

// timelineScore measures deadline pressure from declared constraints and
// urgency language.
func (a *Assessor) timelineScore(req *models.Request) int {
	score := 0

	if !req.Constraints.Deadline.IsZero() {
		remaining := time.Until(req.Constraints.Deadline)
		switch {
		case remaining < 24*time.Hour:
			score = 9
		case remaining < 72*time.Hour:
			score = 6
		default:
			score = 3
		}
	}

	for _, p := range a.urgencyPatterns {
		if p.MatchString(req.Description) {
			score += 2
			break
		}
	}

	return clamp(score, 0, 10)
}

// coordinationScore measures cross-chunk ordering pressure: ordering
// language plus the declared parallelism appetite.
func (a *Assessor) coordinationScore(text string, req *models.Request) int {
	ordering := 0
	for _, p := range a.orderingPatterns {
		ordering += len(p.FindAllString(text, -1))
	}

	score := ordering * 2
	if req.Constraints.MaxParallel > 1 {
		score += 2
	}

	return clamp(score, 0, 10)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
