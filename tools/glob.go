package tools

import (
	"context"
	"encoding/json"
)

type GlobInput struct {
	Pattern string `json:"pattern" jsonschema_description:"Doublestar pattern relative to the workspace root, e.g. **/*.go"`
	Limit   int    `json:"limit,omitempty" jsonschema_description:"Maximum number of matches to return (default 500)."`
}

const defaultGlobLimit = 500

// glob returns a JSON array of sorted matches, capped at limit.
func (ft fileTools) glob() ToolDefinition {
	return ToolDefinition{
		Name:        "glob",
		Description: "Find files in the workspace whose relative path matches a glob pattern. Supports ** for recursive matching.",
		InputSchema: GenerateSchema[GlobInput](),
		Function: func(_ context.Context, input json.RawMessage) (string, error) {
			in, err := decodeInput[GlobInput](input)
			if err != nil {
				return "", err
			}
			limit := in.Limit
			if limit <= 0 {
				limit = defaultGlobLimit
			}
			matches, err := ft.sb.Glob(in.Pattern)
			if err != nil {
				return "", err
			}
			return encodeList(matches[:min(limit, len(matches))])
		},
	}
}
