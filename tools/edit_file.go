package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/petasbytes/tool-runner/internal/safety"
)

type EditFileInput struct {
	Path   string `json:"path" jsonschema_description:"Target relative file path"`
	OldStr string `json:"old_str" jsonschema_description:"Exact text to replace; empty to create a new file."`
	NewStr string `json:"new_str" jsonschema_description:"New text to write or replace old_str with"`
}

const editFileDescription = `Create or modify a text file addressed by a relative path within the workspace.

When old_str is empty and the file doesn't exist, a new file is created with new_str as content.

When editing an existing file, all occurrences of old_str are replaced with new_str; old_str and new_str must be different.
`

func (ft fileTools) editFile() ToolDefinition {
	return ToolDefinition{
		Name:        "edit_file",
		Description: editFileDescription,
		InputSchema: GenerateSchema[EditFileInput](),
		Function: func(_ context.Context, input json.RawMessage) (string, error) {
			in, err := decodeInput[EditFileInput](input)
			if err != nil {
				return "", err
			}
			return ft.edit(in)
		},
	}
}

func (ft fileTools) edit(in EditFileInput) (string, error) {
	if in.Path == "" || in.OldStr == in.NewStr {
		return "", errors.New("invalid edit parameters")
	}

	if in.OldStr == "" {
		err := ft.sb.CreateFile(in.Path, in.NewStr)
		if safety.HasCode(err, safety.CodeFileExists) {
			return "", errors.New("old_str must be provided when editing an existing file")
		}
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Successfully created file %s", in.Path), nil
	}

	old, err := ft.sb.ReadFile(in.Path)
	if err != nil {
		return "", err
	}
	if !strings.Contains(old, in.OldStr) {
		return "", errors.New("old_str not found in file")
	}
	if err := ft.sb.WriteFile(in.Path, strings.ReplaceAll(old, in.OldStr, in.NewStr)); err != nil {
		return "", err
	}
	return "OK", nil
}
