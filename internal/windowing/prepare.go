package windowing

import (
	"github.com/rs/zerolog/log"

	"github.com/petasbytes/tool-runner/conversation"
)

// Stats summarizes the result of window preparation.
type Stats struct {
	// Total is the estimated cost of the included groups.
	Total          int
	Budget         int
	IncludedGroups int
	SkippedGroups  int
	// OverBudgetNewest is set when the newest group alone exceeds Budget,
	// when Budget leaves no room at all, or when no group that fits starts
	// with a user turn.
	OverBudgetNewest bool
}

// PrepareSendWindow returns the longest suffix of turns made of whole groups
// whose estimated cost fits budget and that starts with a user turn. The
// window is empty when the newest group alone does not fit.
func PrepareSendWindow(turns []conversation.Turn, budget int, c TokenCounter) ([]conversation.Turn, Stats) {
	stats := Stats{Budget: budget}
	if len(turns) == 0 {
		return nil, stats
	}

	groups := GroupBlocks(turns)
	start := len(groups)
	for gi := len(groups) - 1; gi >= 0 && budget > 0; gi-- {
		cost := c.CountGroup(groups[gi], turns)
		if stats.Total+cost > budget {
			if gi == len(groups)-1 {
				log.Debug().Int("budget", budget).Int("cost", cost).Msg("windowing: newest group over budget")
			}
			break
		}
		stats.Total += cost
		start = gi
	}

	// The first message sent must be a user turn.
	for start < len(groups) && turns[groups[start].Start].Role != conversation.RoleUser {
		stats.Total -= c.CountGroup(groups[start], turns)
		start++
	}

	stats.IncludedGroups = len(groups) - start
	stats.SkippedGroups = start
	if stats.IncludedGroups == 0 {
		stats.Total = 0
		stats.OverBudgetNewest = true
		return nil, stats
	}
	return turns[groups[start].Start:], stats
}
