// Package conversation holds the turn log shared by the runner, the
// completion adapter and session persistence.
//
// Content blocks form a closed set (Text, ToolUse, ToolResult). Consecutive
// assistant fragments are merged on Append so that a streamed-then-continued
// reply reads as one utterance:
//
//	assistant[text("Hello, ")] + assistant[text("world.")] => assistant[text("Hello, world.")]
package conversation
