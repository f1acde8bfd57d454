// Package windowing picks the newest turns of a conversation that fit an
// estimated token budget without separating a tool call from its results.
package windowing

import (
	"github.com/rs/zerolog/log"

	"github.com/petasbytes/tool-runner/conversation"
)

// GroupKind denotes the atomic unit type when preparing a send window.
type GroupKind int

const (
	GroupSingleton GroupKind = iota
	GroupPair
)

// Group describes a contiguous span of turns [Start, End) in the original slice.
type Group struct {
	Kind  GroupKind
	Start int
	End   int
}

// GroupBlocks groups turns into atomic units that preserve tool-use pairs.
// A pair is an assistant turn with tool_use blocks followed by a user turn
// whose leading tool_result blocks answer exactly those calls; text may
// follow the results. Error results pair like any other. Everything else
// is a singleton.
func GroupBlocks(turns []conversation.Turn) []Group {
	groups := make([]Group, 0, len(turns))
	for i := 0; i < len(turns); i++ {
		uses := toolUseIDs(turns[i])
		if len(uses) == 0 {
			groups = append(groups, Group{Kind: GroupSingleton, Start: i, End: i + 1})
			continue
		}
		if reason := pairReason(uses, turns[i+1:]); reason != "" {
			log.Debug().Str("reason", reason).Int("idx", i).Msg("windowing: exclude pair")
			groups = append(groups, Group{Kind: GroupSingleton, Start: i, End: i + 1})
			continue
		}
		groups = append(groups, Group{Kind: GroupPair, Start: i, End: i + 2})
		i++
	}
	return groups
}

// pairReason explains why the turn after a tool-calling assistant turn does
// not complete it, or returns "" when it does.
func pairReason(uses map[string]struct{}, rest []conversation.Turn) string {
	if len(rest) == 0 || rest[0].Role != conversation.RoleUser {
		return "not_followed_by_user"
	}
	results, ok := leadingResultIDs(rest[0])
	switch {
	case !ok:
		return "ordering_invalid"
	case !subset(uses, results):
		return "missing_results"
	case !subset(results, uses):
		return "extra_results"
	}
	return ""
}

// toolUseIDs returns the tool_use ids of an assistant turn.
func toolUseIDs(t conversation.Turn) map[string]struct{} {
	if t.Role != conversation.RoleAssistant {
		return nil
	}
	ids := make(map[string]struct{})
	for _, tu := range t.ToolUses() {
		if tu.ID != "" {
			ids[tu.ID] = struct{}{}
		}
	}
	return ids
}

// leadingResultIDs collects the ids of the tool_result blocks that open a
// user turn. ok is false when a tool_result follows any other block.
func leadingResultIDs(t conversation.Turn) (ids map[string]struct{}, ok bool) {
	ids = make(map[string]struct{})
	inResults := true
	for _, blk := range t.Content {
		tr, isResult := blk.(conversation.ToolResult)
		if !isResult {
			inResults = false
			continue
		}
		if !inResults {
			return ids, false
		}
		if tr.ToolUseID != "" {
			ids[tr.ToolUseID] = struct{}{}
		}
	}
	return ids, true
}

// subset reports whether every id of a is in b.
func subset(a, b map[string]struct{}) bool {
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}
