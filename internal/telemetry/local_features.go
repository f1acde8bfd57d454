package telemetry

import (
	"context"

	"github.com/petasbytes/tool-runner/conversation"
	"github.com/petasbytes/tool-runner/internal/metrics"
)

const featuresVersion = "2"

// EmitTurnFeatures records the size features of turn as a local_features
// event. It only runs in calibration mode with observation on, and never
// records the turn's text.
func EmitTurnFeatures(ctx context.Context, turn conversation.Turn) {
	if !(CalibrationModeEnabled() && ObserveEnabled()) {
		return
	}
	turnID, _ := TurnIDFromContext(ctx)
	f := metrics.CountTurn(turn)
	Emit("local_features", map[string]any{
		"turn_id":          turnID,
		"features_version": featuresVersion,
		"role":             string(f.Role),
		"text": map[string]any{
			"bytes": f.Text.Bytes,
			"runes": f.Text.Runes,
			"words": f.Text.Words,
			"lines": f.Text.Lines,
		},
		"tools": map[string]any{
			"uses":        f.ToolUses,
			"input_bytes": f.ToolInputBytes,
			"results":     f.ToolResults,
			"errors":      f.ToolErrors,
		},
	})
}
