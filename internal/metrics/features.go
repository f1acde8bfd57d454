// Package metrics derives size features from conversation turns without
// keeping any of their text.
package metrics

import (
	"strings"
	"unicode/utf8"

	"github.com/petasbytes/tool-runner/conversation"
)

// Features holds basic local text features derived from an input string.
type Features struct {
	Bytes int
	Runes int
	Words int
	Lines int
}

// CountFeatures computes and returns byte, rune, word, and line counts for the input string.
func CountFeatures(s string) Features {
	return Features{
		Bytes: len(s),
		Runes: utf8.RuneCountInString(s),
		Words: len(strings.Fields(s)),
		Lines: countLines(s),
	}
}

func (f Features) add(g Features) Features {
	return Features{
		Bytes: f.Bytes + g.Bytes,
		Runes: f.Runes + g.Runes,
		Words: f.Words + g.Words,
		Lines: f.Lines + g.Lines,
	}
}

// TurnFeatures describes one turn: the text it carries and its tool blocks.
type TurnFeatures struct {
	Role conversation.Role
	Text Features
	// ToolInputBytes is the size of the JSON inputs of the turn's tool calls.
	ToolInputBytes int
	ToolUses       int
	ToolResults    int
	ToolErrors     int
}

// CountTurn sums the features of every block in turn. Text inside tool
// results counts towards Text.
func CountTurn(turn conversation.Turn) TurnFeatures {
	tf := TurnFeatures{Role: turn.Role}
	for _, b := range turn.Content {
		switch v := b.(type) {
		case conversation.Text:
			tf.Text = tf.Text.add(CountFeatures(v.Text))
		case conversation.ToolUse:
			tf.ToolUses++
			tf.ToolInputBytes += len(v.Input)
		case conversation.ToolResult:
			tf.ToolResults++
			if v.IsError {
				tf.ToolErrors++
			}
			for _, c := range v.Content {
				tf.Text = tf.Text.add(CountFeatures(c.Text))
			}
		}
	}
	return tf
}

// countLines returns 0 for empty strings; otherwise 1 plus the number of '\n' runes.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	return 1 + strings.Count(s, "\n")
}
