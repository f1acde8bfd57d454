package tools

import (
	"context"
	"encoding/json"
)

func (ft fileTools) getRoot() ToolDefinition {
	return ToolDefinition{
		Name:        "get_root",
		Description: "Return the absolute path of the workspace root that relative paths are resolved against.",
		InputSchema: ObjectSchema(nil),
		Function: func(context.Context, json.RawMessage) (string, error) {
			root, _ := ft.sb.Roots()
			return root, nil
		},
	}
}
