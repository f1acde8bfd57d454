package safety

import "encoding/json"

// Codes carried by ToolError.
const (
	CodeOutsideSandbox = "ERR_PATH_OUTSIDE_SANDBOX"
	CodeDeniedRead     = "ERR_DENIED_READ"
	CodeDeniedWrite    = "ERR_DENIED_WRITE"
	CodeNotAFile       = "ERR_NOT_A_FILE"
	CodeFileTooLarge   = "ERR_FILE_TOO_LARGE"
	CodeFileExists     = "ERR_FILE_EXISTS"
	CodeBadPattern     = "ERR_BAD_PATTERN"
)

// ToolError is a machine-readable error body for surfacing back to the agent as JSON.
type ToolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error returns a compact, single-line JSON string to keep tool_result payloads small.
func (e ToolError) Error() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// HasCode reports whether err is a ToolError with the given code.
func HasCode(err error, code string) bool {
	te, ok := err.(ToolError)
	return ok && te.Code == code
}
