package windowing

import (
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/tiktoken-go/tokenizer"

	"github.com/petasbytes/tool-runner/conversation"
)

// TiktokenCounter counts cl100k_base tokens. Claude uses its own
// tokenizer, so this is still an estimate, but a closer one for prose and
// code than rune counting.
type TiktokenCounter struct {
	codec tokenizer.Codec
}

func NewTiktokenCounter() (*TiktokenCounter, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, errors.Wrap(err, "load cl100k_base")
	}
	return &TiktokenCounter{codec: codec}, nil
}

func (c *TiktokenCounter) CountMessage(m conversation.Turn) int {
	total := 0
	for _, blk := range m.Content {
		switch b := blk.(type) {
		case conversation.Text:
			total += c.tokens(b.Text)
		case conversation.ToolUse:
			total += c.tokens(b.Name) + c.tokens(string(b.Input))
		case conversation.ToolResult:
			total += c.tokens(b.String())
		}
		total += blockOverhead
	}
	return total
}

func (c *TiktokenCounter) CountGroup(g Group, all []conversation.Turn) int {
	total := 0
	for _, t := range all[g.Start:min(g.End, len(all))] {
		total += c.CountMessage(t)
	}
	return total
}

// tokens falls back to the rune count for input the codec rejects.
func (c *TiktokenCounter) tokens(s string) int {
	if s == "" {
		return 0
	}
	ids, _, err := c.codec.Encode(s)
	if err != nil {
		return utf8.RuneCountInString(s)
	}
	return len(ids)
}
