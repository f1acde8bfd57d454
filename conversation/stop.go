package conversation

// StopReason says why generation ended for a round.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopMaxTokens StopReason = "max_tokens"
	StopSequence  StopReason = "stop_sequence"
	StopToolUse   StopReason = "tool_use"
	// StopUnknown covers vendor reasons outside the enum. It is terminal.
	StopUnknown StopReason = "unknown"
)

// ParseStopReason maps a wire value onto the enum.
func ParseStopReason(s string) StopReason {
	switch r := StopReason(s); r {
	case StopEndTurn, StopMaxTokens, StopSequence, StopToolUse:
		return r
	default:
		return StopUnknown
	}
}

// Terminal reports whether the reason ends the outer loop on its own.
func (r StopReason) Terminal() bool {
	switch r {
	case StopToolUse, StopMaxTokens:
		return false
	default:
		return true
	}
}
