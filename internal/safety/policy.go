package safety

import (
	"path/filepath"
	"strings"
)

// deniedDirs may not be read or written at the sandbox root.
var deniedDirs = []string{".git", ".agent"}

// deniedWriteBasenames are blocked at any depth.
var deniedWriteBasenames = map[string]struct{}{
	"go.mod": {},
	"go.sum": {},
}

// ValidateWritePath applies ValidateRelPath boundary rules for writes and
// additionally denies writes under .git/ and .agent/ and to go.mod or go.sum.
func ValidateWritePath(absRoot, relPath string) (string, error) {
	candidate, err := ValidateRelPath(absRoot, relPath)
	if HasCode(err, CodeDeniedRead) {
		return "", ToolError{Code: CodeDeniedWrite, Message: "writes under .git/ or .agent/ are not allowed"}
	}
	if err != nil {
		return "", err
	}
	if base := filepath.Base(candidate); isDeniedWrite(base) {
		return "", ToolError{Code: CodeDeniedWrite, Message: "writes to " + base + " are not allowed"}
	}
	return candidate, nil
}

func isDeniedWrite(base string) bool {
	_, ok := deniedWriteBasenames[base]
	return ok
}

// IsDenied reports whether a slash-separated path relative to the sandbox
// root falls under a read-denied directory.
func IsDenied(rel string) bool {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "./")
	for _, dir := range deniedDirs {
		if rel == dir || strings.HasPrefix(rel, dir+"/") {
			return true
		}
	}
	return false
}
