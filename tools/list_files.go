package tools

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
)

type ListFilesInput struct {
	Path     string `json:"path,omitempty" jsonschema_description:"Optional relative path to list files from (defaults to current directory)."`
	Page     int    `json:"page,omitempty" jsonschema_description:"1-based page number (default 1)."`
	PageSize int    `json:"page_size,omitempty" jsonschema_description:"Page size (default 200)."`
}

const defaultListFilesPageSize = 200

// listFiles pages the sorted entries of one directory. Directories carry a
// trailing "/"; a page past the end is an empty array.
func (ft fileTools) listFiles() ToolDefinition {
	return ToolDefinition{
		Name:        "list_files",
		Description: "List names of files in a directory within the workspace (non-recursive).",
		InputSchema: GenerateSchema[ListFilesInput](),
		Function: func(_ context.Context, input json.RawMessage) (string, error) {
			in, err := decodeInput[ListFilesInput](input)
			if err != nil {
				return "", err
			}
			page := max(in.Page, 1)
			pageSize := in.PageSize
			if pageSize <= 0 {
				pageSize = defaultListFilesPageSize
			}

			raw, err := ft.sb.ListFiles(in.Path)
			if err != nil {
				return "", err
			}
			var names []string
			if err := json.Unmarshal([]byte(raw), &names); err != nil {
				return "", errors.Wrap(err, "invalid listing")
			}
			sort.Strings(names)

			start := (page - 1) * pageSize
			if start >= len(names) {
				return encodeList(nil)
			}
			return encodeList(names[start:min(start+pageSize, len(names))])
		},
	}
}
