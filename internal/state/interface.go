package state

import (
	"context"

	"github.com/asheridan/loom/internal/engine"
	"github.com/asheridan/loom/pkg/models"
)

// RunSaver persists terminal run snapshots.
type RunSaver interface {
	SaveRun(ctx context.Context, snap *models.RunSnapshot) error
}

// RunReader loads run history.
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// RunStore combines saving and reading run history.
type RunStore interface {
	RunSaver
	RunReader
}

// Verify DB satisfies the store interfaces at compile time.
var (
	_ RunStore    = (*DB)(nil)
	_ engine.Sink = (*DB)(nil)
)
