package tools

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/petasbytes/tool-runner/internal/fsops"
)

// FileTools returns the workspace file tools: read_file, list_files,
// edit_file, glob and get_root. Every path they accept is relative to the
// roots of sb.
func FileTools(sb *fsops.Sandbox) []ToolDefinition {
	ft := fileTools{sb: sb}
	return []ToolDefinition{
		ft.readFile(),
		ft.listFiles(),
		ft.editFile(),
		ft.glob(),
		ft.getRoot(),
	}
}

type fileTools struct {
	sb *fsops.Sandbox
}

func decodeInput[T any](input json.RawMessage) (T, error) {
	var in T
	if err := json.Unmarshal(input, &in); err != nil {
		return in, errors.Wrap(err, "decode input")
	}
	return in, nil
}

// encodeList renders names as a JSON array, never null.
func encodeList(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	b, err := json.Marshal(names)
	if err != nil {
		return "", errors.Wrap(err, "encode result")
	}
	return string(b), nil
}
