package exec

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/asheridan/loom/pkg/models"
)

// CommandExecutor runs each chunk through a shell command template.
// The chunk description is passed on stdin and the agent ID through the
// LOOM_AGENT environment variable, so a single worker script can serve
// the whole static pool.
type CommandExecutor struct {
	// command is the shell command run for each chunk.
	command string
	// workDir is the working directory for the command, empty for inherited.
	workDir string
}

// NewCommandExecutor creates a CommandExecutor for the given shell command.
func NewCommandExecutor(command, workDir string) *CommandExecutor {
	return &CommandExecutor{command: command, workDir: workDir}
}

// Execute runs the command with the chunk description on stdin and returns
// combined stdout/stderr. A non-zero exit is an execution failure carrying
// the tail of the output for diagnostics.
func (e *CommandExecutor) Execute(ctx context.Context, chunk *models.Chunk, agent models.AgentInfo) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", e.command)
	if e.workDir != "" {
		cmd.Dir = e.workDir
	}
	cmd.Stdin = strings.NewReader(chunk.Description)
	cmd.Env = append(cmd.Environ(),
		"LOOM_AGENT="+agent.ID,
		"LOOM_CHUNK="+chunk.ID,
	)

	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("chunk command failed: %w: %s", err, tail(string(out), 512))
	}
	return string(out), nil
}

// tail returns the last n bytes of s.
func tail(s string, n int) string {
	if len(s) <= n {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(s[len(s)-n:])
}

var _ Executor = (*CommandExecutor)(nil)
