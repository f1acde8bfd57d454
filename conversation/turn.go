package conversation

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Turn is one message in the conversation.
type Turn struct {
	Role    Role    `json:"role"`
	Content []Block `json:"content"`
}

// UserText returns a user turn holding a single text block.
func UserText(text string) Turn {
	return Turn{Role: RoleUser, Content: []Block{Text{Text: text}}}
}

// AssistantText returns an assistant turn holding a single text block.
func AssistantText(text string) Turn {
	return Turn{Role: RoleAssistant, Content: []Block{Text{Text: text}}}
}

// LeadingText reports whether the first block of the turn is Text.
func (t Turn) LeadingText() (Text, bool) {
	if len(t.Content) == 0 {
		return Text{}, false
	}
	txt, ok := t.Content[0].(Text)
	return txt, ok
}

// ToolUses returns the tool_use blocks of the turn in order.
func (t Turn) ToolUses() []ToolUse {
	var out []ToolUse
	for _, b := range t.Content {
		if tu, ok := b.(ToolUse); ok {
			out = append(out, tu)
		}
	}
	return out
}

// TextContent concatenates every text block of the turn, separated by newlines.
func (t Turn) TextContent() string {
	s := ""
	for _, b := range t.Content {
		if txt, ok := b.(Text); ok && txt.Text != "" {
			if s != "" {
				s += "\n"
			}
			s += txt.Text
		}
	}
	return s
}

// HasToolResults reports whether the turn carries at least one tool_result.
func (t Turn) HasToolResults() bool {
	for _, b := range t.Content {
		if _, ok := b.(ToolResult); ok {
			return true
		}
	}
	return false
}

func (t *Turn) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    Role              `json:"role"`
		Content []json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "decode turn")
	}
	if raw.Role != RoleUser && raw.Role != RoleAssistant {
		return errors.Errorf("unknown role %q", raw.Role)
	}
	blocks := make([]Block, 0, len(raw.Content))
	for i, c := range raw.Content {
		b, err := UnmarshalBlock(c)
		if err != nil {
			return errors.Wrapf(err, "content[%d]", i)
		}
		blocks = append(blocks, b)
	}
	t.Role = raw.Role
	t.Content = blocks
	return nil
}
