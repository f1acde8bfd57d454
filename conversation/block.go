package conversation

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Role attributes a turn to one side of the exchange.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Block is one atomic unit within a turn. The set of implementations is
// closed: Text, ToolUse and ToolResult.
type Block interface {
	blockType() string
}

// Text is a plain text block.
type Text struct {
	Text string `json:"text"`
}

// ToolUse is a model request to invoke a named tool with structured input.
type ToolUse struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult answers a ToolUse from the immediately preceding assistant turn.
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Content   []Text `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

const (
	typeText       = "text"
	typeToolUse    = "tool_use"
	typeToolResult = "tool_result"
)

func (Text) blockType() string       { return typeText }
func (ToolUse) blockType() string    { return typeToolUse }
func (ToolResult) blockType() string { return typeToolResult }

// NewToolResult builds a single-text result for toolUseID.
func NewToolResult(toolUseID, content string, isError bool) ToolResult {
	return ToolResult{ToolUseID: toolUseID, Content: []Text{{Text: content}}, IsError: isError}
}

// String joins the text content of the result.
func (r ToolResult) String() string {
	parts := make([]string, 0, len(r.Content))
	for _, c := range r.Content {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "")
}

func (b Text) MarshalJSON() ([]byte, error) {
	type alias Text
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{typeText, alias(b)})
}

func (b ToolUse) MarshalJSON() ([]byte, error) {
	type alias ToolUse
	if len(b.Input) == 0 {
		b.Input = json.RawMessage(`{}`)
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{typeToolUse, alias(b)})
}

func (b ToolResult) MarshalJSON() ([]byte, error) {
	type alias ToolResult
	if b.Content == nil {
		b.Content = []Text{}
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{typeToolResult, alias(b)})
}

// UnmarshalBlock decodes a single block using its "type" discriminator.
func UnmarshalBlock(data []byte) (Block, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, errors.Wrap(err, "decode block type")
	}
	switch head.Type {
	case typeText:
		var b Text
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, errors.Wrap(err, "decode text block")
		}
		return b, nil
	case typeToolUse:
		var b ToolUse
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, errors.Wrap(err, "decode tool_use block")
		}
		return b, nil
	case typeToolResult:
		var b ToolResult
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, errors.Wrap(err, "decode tool_result block")
		}
		return b, nil
	default:
		return nil, errors.Errorf("unknown block type %q", head.Type)
	}
}
