// Package gate evaluates chunk output against quality checks before the
// output is accepted.
package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/asheridan/loom/internal/plan"
	"github.com/asheridan/loom/internal/research"
	"github.com/asheridan/loom/pkg/models"
)

// Verdict is the outcome of evaluating all of a chunk's gates.
// A rejecting verdict is routine control flow, not an error: the
// orchestrator retries the chunk against its budget.
type Verdict struct {
	// Accepted is true when every applicable gate passed.
	Accepted bool
	// Reason explains the first failing gate, empty when accepted.
	Reason string
	// Warnings annotates skipped or degraded checks.
	Warnings []string
}

// Evaluator runs quality gates over chunk output.
type Evaluator struct {
	lookup   research.Service
	debugLog func(format string, args ...interface{})
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLookup wires the external validation service.
func WithLookup(svc research.Service) Option {
	return func(e *Evaluator) { e.lookup = svc }
}

// WithLogger sets the debug logging function.
func WithLogger(fn func(format string, args ...interface{})) Option {
	return func(e *Evaluator) {
		if fn != nil {
			e.debugLog = fn
		}
	}
}

// New creates an Evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		debugLog: func(format string, args ...interface{}) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs the chunk's gates in order and returns the combined verdict.
// The first failing gate short-circuits. Infrastructure failure in the
// external check skips that check with a warning; it never rejects a chunk.
func (e *Evaluator) Evaluate(ctx context.Context, chunk *models.Chunk, gates []plan.GateKind) Verdict {
	verdict := Verdict{Accepted: true}

	for _, g := range gates {
		switch g {
		case plan.GateContent:
			if reason := checkContent(chunk.Output); reason != "" {
				e.debugLog("[gate] chunk %s failed content gate: %s", chunk.ID, reason)
				return Verdict{Reason: reason, Warnings: verdict.Warnings}
			}
		case plan.GateShape:
			if reason := checkShape(chunk.Output); reason != "" {
				e.debugLog("[gate] chunk %s failed shape gate: %s", chunk.ID, reason)
				return Verdict{Reason: reason, Warnings: verdict.Warnings}
			}
		case plan.GateExternal:
			if warning := e.checkExternal(ctx, chunk); warning != "" {
				verdict.Warnings = append(verdict.Warnings, warning)
			}
		}
	}

	return verdict
}

// checkContent verifies the output carries substantive content.
func checkContent(output string) string {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return "content gate: output is empty"
	}
	if len(strings.Fields(trimmed)) < 2 {
		return "content gate: output is not substantive"
	}
	return ""
}

// checkShape verifies structured output parses. Only output that presents
// as JSON is held to this; prose passes through.
func checkShape(output string) string {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return "shape gate: output is empty"
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return ""
	}
	if !json.Valid([]byte(trimmed)) {
		return "shape gate: output presents as JSON but does not parse"
	}
	return ""
}

// checkExternal validates output against the lookup service. Any failure,
// including an unconfigured service, downgrades to a warning.
func (e *Evaluator) checkExternal(ctx context.Context, chunk *models.Chunk) string {
	if e.lookup == nil {
		return "external check skipped: lookup service not configured"
	}

	result, err := e.lookup.Query(ctx, chunk.Description)
	if err != nil {
		e.debugLog("[gate] external check for chunk %s degraded: %v", chunk.ID, err)
		return fmt.Sprintf("external check skipped: %v", err)
	}
	if strings.TrimSpace(result) == "" {
		return "external check skipped: lookup returned no data"
	}
	return ""
}
