// Package exec provides chunk execution backends.
package exec

import (
	"context"

	"github.com/asheridan/loom/pkg/models"
)

// Executor runs one chunk on behalf of one agent and returns its output.
// Implementations must honor the context deadline; the orchestrator imposes
// per-chunk timeouts through it. This abstraction allows scripted executors
// in tests.
type Executor interface {
	Execute(ctx context.Context, chunk *models.Chunk, agent models.AgentInfo) (output string, err error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, chunk *models.Chunk, agent models.AgentInfo) (string, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, chunk *models.Chunk, agent models.AgentInfo) (string, error) {
	return f(ctx, chunk, agent)
}
