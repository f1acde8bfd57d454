package windowing

import (
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/petasbytes/tool-runner/conversation"
)

// TokenCounter estimates input-token cost for turns or groups.
type TokenCounter interface {
	CountMessage(m conversation.Turn) int
	CountGroup(g Group, all []conversation.Turn) int
}

// HeuristicCounter is a deterministic estimator that counts runes:
//   - text: the text
//   - tool_use: the tool name plus the raw input bytes
//   - tool_result: the nested text
//
// Every block also costs blockOverhead.
type HeuristicCounter struct{}

// changing this requires updating the guard test
const blockOverhead = 4

func (HeuristicCounter) CountMessage(m conversation.Turn) int {
	total := 0
	for _, blk := range m.Content {
		total += blockCost(blk) + blockOverhead
	}
	return total
}

func (h HeuristicCounter) CountGroup(g Group, all []conversation.Turn) int {
	total := 0
	for _, t := range all[g.Start:min(g.End, len(all))] {
		total += h.CountMessage(t)
	}
	return total
}

func blockCost(blk conversation.Block) int {
	switch b := blk.(type) {
	case conversation.Text:
		return utf8.RuneCountInString(b.Text)
	case conversation.ToolUse:
		return utf8.RuneCountInString(b.Name) + len(b.Input)
	case conversation.ToolResult:
		return utf8.RuneCountInString(b.String())
	default:
		log.Debug().Msgf("windowing: counter: unsupported block %T, using overhead only", blk)
		return 0
	}
}
