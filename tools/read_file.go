package tools

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"
)

type ReadFileInput struct {
	Path   string `json:"path" jsonschema_description:"Relative file path."`
	Offset int    `json:"offset,omitempty" jsonschema_description:"Line offset (0-based) to start reading from."`
	Limit  int    `json:"limit,omitempty" jsonschema_description:"Maximum lines to return from offset (default 200)."`
}

const (
	defaultReadFileLimit = 200
	maxLineRunes         = 2000
	overallRuneCap       = 12_000
	truncationSentinel   = "-- truncated; use offset/limit to fetch more --\n"
)

func (ft fileTools) readFile() ToolDefinition {
	return ToolDefinition{
		Name:        "read_file",
		Description: "Read the contents of a file addressed by a relative file path within the workspace. Directory paths and unsafe paths are rejected.",
		InputSchema: GenerateSchema[ReadFileInput](),
		Function: func(_ context.Context, input json.RawMessage) (string, error) {
			in, err := decodeInput[ReadFileInput](input)
			if err != nil {
				return "", err
			}
			content, err := ft.sb.ReadFile(in.Path)
			if err != nil {
				return "", err
			}
			return pageLines(content, in.Offset, in.Limit), nil
		},
	}
}

// pageLines returns limit lines of content starting at line offset. Long
// lines and long pages are cut; any cut, including lines left after the
// page, ends the output with truncationSentinel.
func pageLines(content string, offset, limit int) string {
	if limit <= 0 {
		limit = defaultReadFileLimit
	}
	lines := strings.Split(content, "\n")
	offset = min(max(offset, 0), len(lines))
	end := min(offset+limit, len(lines))

	page := lines[offset:end]
	truncated := end < len(lines)
	for i, line := range page {
		if utf8.RuneCountInString(line) > maxLineRunes {
			page[i] = string([]rune(line)[:maxLineRunes])
			truncated = true
		}
	}

	out := strings.Join(page, "\n")
	if utf8.RuneCountInString(out) > overallRuneCap {
		out = string([]rune(out)[:overallRuneCap])
		truncated = true
	}
	if !truncated {
		return out
	}
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out + truncationSentinel
}
