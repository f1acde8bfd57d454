package conversation

import (
	"strings"
	"sync"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
)

// ErrMergeInvariant is returned when an assistant turn leading with text
// follows an assistant turn that cannot absorb it. The state machine never
// produces that sequence, so seeing it means a caller bypassed the runner.
var ErrMergeInvariant = errors.New("conversation: incompatible consecutive assistant turns")

// Log is an ordered sequence of turns. It is safe for concurrent use.
type Log struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewLog returns a log seeded with turns, for example a persisted session.
// The turns are copied.
func NewLog(turns ...Turn) *Log {
	l := &Log{}
	if len(turns) > 0 {
		l.turns = clone.Clone(turns).([]Turn)
	}
	return l
}

// Append adds turn to the log.
//
// When both the last turn and turn are assistant turns, the last turn holds a
// single Text block and turn leads with Text, the two texts are concatenated
// into one block and the rest of turn follows it. When turn leads with a
// non-text block, or the roles differ, turn becomes a new entry.
func (l *Log) Append(turn Turn) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	turn = clone.Clone(turn).(Turn)
	n := len(l.turns)
	if n == 0 || l.turns[n-1].Role != RoleAssistant || turn.Role != RoleAssistant {
		l.turns = append(l.turns, turn)
		return nil
	}

	last := l.turns[n-1]
	switch {
	case len(turn.Content) == 0:
		// nothing to add
		return nil
	case len(last.Content) == 0:
		l.turns[n-1] = turn
		return nil
	}

	next, ok := turn.LeadingText()
	if !ok {
		l.turns = append(l.turns, turn)
		return nil
	}
	prev, ok := last.LeadingText()
	if !ok || len(last.Content) != 1 {
		return ErrMergeInvariant
	}

	merged := make([]Block, 0, len(turn.Content))
	merged = append(merged, Text{Text: prev.Text + next.Text})
	merged = append(merged, turn.Content[1:]...)
	l.turns[n-1] = Turn{Role: RoleAssistant, Content: merged}
	return nil
}

// AppendUser adds blocks as user input. If the log ends with a user turn
// that has not been answered yet, the blocks are folded into it.
func (l *Log) AppendUser(blocks ...Block) {
	l.mu.Lock()
	defer l.mu.Unlock()

	blocks = clone.Clone(blocks).([]Block)
	if n := len(l.turns); n > 0 && l.turns[n-1].Role == RoleUser {
		l.turns[n-1].Content = append(l.turns[n-1].Content, blocks...)
		return
	}
	l.turns = append(l.turns, Turn{Role: RoleUser, Content: blocks})
}

// Current returns a deep copy of all turns.
func (l *Log) Current() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.turns) == 0 {
		return []Turn{}
	}
	return clone.Clone(l.turns).([]Turn)
}

// Last returns a copy of the newest turn.
func (l *Log) Last() (Turn, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.turns) == 0 {
		return Turn{}, false
	}
	return clone.Clone(l.turns[len(l.turns)-1]).(Turn), true
}

// Len returns the number of turns.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// Truncate keeps only the newest n turns.
func (l *Log) Truncate(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if len(l.turns) > n {
		l.turns = append([]Turn(nil), l.turns[len(l.turns)-n:]...)
	}
}

// TrimAssistantTail strips trailing whitespace from the final text block of
// a trailing assistant turn. That turn is sent as a prefill, which may not end
// in whitespace, so the stored text has to match what the model continues.
func (l *Log) TrimAssistantTail() {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.turns)
	if n == 0 || l.turns[n-1].Role != RoleAssistant {
		return
	}
	content := l.turns[n-1].Content
	if len(content) == 0 {
		return
	}
	if txt, ok := content[len(content)-1].(Text); ok {
		trimmed := append([]Block(nil), content...)
		trimmed[len(trimmed)-1] = Text{Text: strings.TrimRight(txt.Text, " \t\r\n")}
		l.turns[n-1].Content = trimmed
	}
}
