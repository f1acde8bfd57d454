package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/petasbytes/tool-runner/conversation"
	"github.com/petasbytes/tool-runner/internal/telemetry"
	"github.com/petasbytes/tool-runner/tools"
)

// UnknownToolPolicy decides what happens when the model calls a tool that
// is not registered.
type UnknownToolPolicy int

const (
	// UnknownToolFatal fails the round with *UnknownToolError before any
	// tool of the round runs.
	UnknownToolFatal UnknownToolPolicy = iota
	// UnknownToolAsError answers the call with an is_error result.
	UnknownToolAsError
)

func ParseUnknownToolPolicy(s string) (UnknownToolPolicy, error) {
	switch s {
	case "", "fatal":
		return UnknownToolFatal, nil
	case "error":
		return UnknownToolAsError, nil
	default:
		return UnknownToolFatal, fmt.Errorf("unknown-tool policy %q: want fatal or error", s)
	}
}

type UnknownToolError struct {
	Name      string
	ToolUseID string
	// Suggestion is the closest registered name, if any.
	Suggestion string
}

func (e *UnknownToolError) Error() string {
	msg := fmt.Sprintf("runner: model requested unknown tool %q (tool_use %s)", e.Name, e.ToolUseID)
	if e.Suggestion != "" {
		msg += fmt.Sprintf("; did you mean %q?", e.Suggestion)
	}
	return msg
}

func (r *Runner) unknownTool(use conversation.ToolUse) *UnknownToolError {
	suggestion, _ := r.reg.Suggest(use.Name)
	return &UnknownToolError{Name: use.Name, ToolUseID: use.ID, Suggestion: suggestion}
}

// dispatch runs the tool calls of one assistant turn and returns their
// results in request order. Calls may run concurrently up to
// Config.MaxParallelTools.
func (r *Runner) dispatch(ctx context.Context, uses []conversation.ToolUse) ([]conversation.ToolResult, error) {
	resolved := make([]*tools.Tool, len(uses))
	results := make([]conversation.ToolResult, len(uses))
	for i, use := range uses {
		t, ok := r.reg.Get(use.Name)
		if ok {
			resolved[i] = t
			continue
		}
		emitToolExec(ctx, use, 0, 0, "tool not found")
		uerr := r.unknownTool(use)
		if r.cfg.UnknownTool == UnknownToolFatal {
			return nil, uerr
		}
		msg := "tool not found: " + use.Name
		if uerr.Suggestion != "" {
			msg += fmt.Sprintf(" (did you mean %s?)", uerr.Suggestion)
		}
		results[i] = conversation.NewToolResult(use.ID, msg, true)
	}

	var g errgroup.Group
	g.SetLimit(r.cfg.MaxParallelTools)
	for i, use := range uses {
		if resolved[i] == nil {
			continue
		}
		g.Go(func() error {
			results[i] = execTool(ctx, resolved[i], use)
			return nil
		})
	}
	_ = g.Wait()

	// Results of an aborted dispatch are dropped. A later Run redoes the calls;
	// a later Ask answers them as interrupted.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func execTool(ctx context.Context, t *tools.Tool, use conversation.ToolUse) conversation.ToolResult {
	start := time.Now()
	res := t.Invoke(ctx, use)
	elapsed := time.Since(start)

	outSize := 0
	for _, c := range res.Content {
		outSize += len(c.Text)
	}
	errStr := ""
	if res.IsError {
		// Keep raw payloads out of telemetry; the detail stays in the result.
		errStr = "tool error"
		outSize = 0
	}
	emitToolExec(ctx, use, elapsed, outSize, errStr)
	log.Debug().
		Str("tool", use.Name).
		Str("tool_use_id", use.ID).
		Dur("elapsed", elapsed).
		Bool("is_error", res.IsError).
		Msg("runner: tool executed")
	return res
}

func emitToolExec(ctx context.Context, use conversation.ToolUse, elapsed time.Duration, outSize int, errStr string) {
	turnID, _ := telemetry.TurnIDFromContext(ctx)
	fields := map[string]any{
		"tool_name":   use.Name,
		"duration_ms": elapsed.Milliseconds(),
		"input_size":  len(use.Input),
		"output_size": outSize,
		"turn_id":     turnID,
	}
	if errStr != "" {
		fields["error"] = errStr
	} else {
		fields["error"] = nil
	}
	telemetry.Emit("tool_exec", fields)
}
