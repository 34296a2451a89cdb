// Package aggregate merges accepted chunk outputs into a run's final result.
package aggregate

import (
	"sort"
	"strings"

	"github.com/asheridan/loom/pkg/models"
)

// MergeStrategy combines accepted chunk outputs into one deliverable.
// Chunks arrive in dependency-respecting position order.
type MergeStrategy interface {
	Merge(chunks []*models.Chunk) string
}

// OrderedConcat joins outputs in position order with blank-line separators.
// It is the default strategy.
type OrderedConcat struct{}

// Merge implements MergeStrategy.
func (OrderedConcat) Merge(chunks []*models.Chunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out := strings.TrimSpace(c.Output)
		if out == "" {
			continue
		}
		parts = append(parts, out)
	}
	return strings.Join(parts, "\n\n")
}

var _ MergeStrategy = OrderedConcat{}

// Aggregator assembles final results from terminal chunk sets.
type Aggregator struct {
	strategy MergeStrategy
}

// New creates an Aggregator. A nil strategy falls back to OrderedConcat.
func New(strategy MergeStrategy) *Aggregator {
	if strategy == nil {
		strategy = OrderedConcat{}
	}
	return &Aggregator{strategy: strategy}
}

// Aggregate produces the final result for a run whose chunks have all
// reached terminal states. The verdict follows from the chunk fates:
// cancellation wins, then all-accepted, then any-accepted, then failed.
func (a *Aggregator) Aggregate(runID string, chunks []*models.Chunk, cancelled bool) *models.FinalResult {
	ordered := make([]*models.Chunk, len(chunks))
	copy(ordered, chunks)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Position != ordered[j].Position {
			return ordered[i].Position < ordered[j].Position
		}
		return ordered[i].ID < ordered[j].ID
	})

	var accepted []*models.Chunk
	manifest := make([]models.ManifestEntry, 0, len(ordered))
	for _, c := range ordered {
		entry := models.ManifestEntry{
			ChunkID:     c.ID,
			Description: c.Description,
			Attempts:    c.Attempts,
		}
		switch c.State {
		case models.ChunkAccepted:
			entry.Fate = models.FateAccepted
			accepted = append(accepted, c)
		case models.ChunkRejected:
			entry.Fate = models.FateRejected
			entry.Reason = c.BlockedReason
		case models.ChunkBlocked:
			entry.Fate = models.FateBlocked
			entry.Reason = c.BlockedReason
		default:
			entry.Fate = models.FateCancelled
		}
		manifest = append(manifest, entry)
	}

	return &models.FinalResult{
		RunID:       runID,
		Verdict:     verdictFor(len(accepted), len(ordered), cancelled),
		Deliverable: a.strategy.Merge(accepted),
		Manifest:    manifest,
	}
}

// verdictFor classifies a run from its accepted-chunk count.
func verdictFor(accepted, total int, cancelled bool) models.RunVerdict {
	switch {
	case cancelled:
		return models.VerdictCancelled
	case total > 0 && accepted == total:
		return models.VerdictSucceeded
	case accepted > 0:
		return models.VerdictPartiallyFailed
	default:
		return models.VerdictFailed
	}
}
