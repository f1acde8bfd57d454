// Package runner drives a tool-calling conversation with a completion
// provider and dispatches the tool calls the model makes.
//
// Each round requests one assistant turn, merges it into the log, runs any
// requested tools and submits their results as a single user turn:
//
//	user(text) -> assistant(tool_use) -> user(tool_result) -> assistant(text)
//
// Invariants:
//   - tool_use and the corresponding tool_result stay in adjacent turns, with
//     results in the order the calls were made.
//   - an assistant turn cut off by max_tokens is continued and merged into
//     one turn rather than repeated.
//   - an unknown tool fails the round before any tool of that round runs,
//     unless Config.UnknownTool says otherwise.
package runner
