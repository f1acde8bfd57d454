package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/petasbytes/tool-runner/conversation"
)

// Handler runs a tool with its raw JSON input and returns a text payload.
// A returned error becomes an is_error tool result.
type Handler func(ctx context.Context, input json.RawMessage) (string, error)

// ResultHandler runs a tool and returns a fully formed result. It is used
// when a tool needs to control is_error or multi-block content itself.
type ResultHandler func(ctx context.Context, use conversation.ToolUse) (conversation.ToolResult, error)

type ToolDefinition struct {
	Name           string
	Description    string
	InputSchema    Schema
	Function       Handler
	ResultFunction ResultHandler
}

// Tool is a registered, schema-compiled definition.
type Tool struct {
	ToolDefinition
	schema *gojsonschema.Schema
}

// Invoke validates the input of use and runs the handler. Every outcome,
// including a panicking handler, is reported as a result for use.ID.
func (t *Tool) Invoke(ctx context.Context, use conversation.ToolUse) (res conversation.ToolResult) {
	defer func() {
		if p := recover(); p != nil {
			res = conversation.NewToolResult(use.ID, fmt.Sprintf("tool %s panicked: %v", t.Name, p), true)
		}
	}()

	if err := validate(t.schema, use.Input); err != nil {
		return conversation.NewToolResult(use.ID, err.Error(), true)
	}

	if t.ResultFunction != nil {
		r, err := t.ResultFunction(ctx, use)
		if err != nil {
			return conversation.NewToolResult(use.ID, err.Error(), true)
		}
		r.ToolUseID = use.ID
		return r
	}

	input := use.Input
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	out, err := t.Function(ctx, input)
	if err != nil {
		return conversation.NewToolResult(use.ID, err.Error(), true)
	}
	return conversation.NewToolResult(use.ID, out, false)
}
