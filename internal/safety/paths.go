// Package safety provides helpers for sandboxed file access.
package safety

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// InitSandboxRoot resolves absolute sandbox roots for read and write
// operations. An empty readRoot is the working directory and an empty
// writeRoot is readRoot.
func InitSandboxRoot(readRoot, writeRoot string) (absRead string, absWrite string, err error) {
	if readRoot == "" {
		if readRoot, err = os.Getwd(); err != nil {
			return "", "", errors.Wrap(err, "getwd")
		}
	}
	if writeRoot == "" {
		writeRoot = readRoot
	}
	if absRead, err = canonical(readRoot); err != nil {
		return "", "", errors.Wrap(err, "read root")
	}
	if absWrite, err = canonical(writeRoot); err != nil {
		return "", "", errors.Wrap(err, "write root")
	}
	return absRead, absWrite, nil
}

// canonical makes dir absolute and resolves its symlinks when it exists.
func canonical(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

// ValidateRelPath resolves relPath against absRoot and returns an absolute path
// inside the sandbox. It rejects absolute inputs, parent traversal, and symlink
// escapes, and denies reads under .git/ and .agent/. On violation, returns a ToolError.
func ValidateRelPath(absRoot, relPath string) (string, error) {
	if filepath.IsAbs(relPath) {
		return "", ToolError{Code: CodeOutsideSandbox, Message: "absolute paths are not allowed"}
	}

	candidate := resolveExisting(filepath.Join(absRoot, filepath.Clean(relPath)))
	rel, ok := within(absRoot, candidate)
	if !ok {
		return "", ToolError{Code: CodeOutsideSandbox, Message: "requested path resolves outside the sandbox root"}
	}
	if IsDenied(rel) {
		return "", ToolError{Code: CodeDeniedRead, Message: "reads under .git/ or .agent/ are not allowed"}
	}
	return candidate, nil
}

// resolveExisting resolves the symlinks of the deepest existing ancestor of
// path and rejoins the missing tail, so a symlinked parent of a file that
// does not exist yet is still followed.
func resolveExisting(path string) string {
	var tail []string
	for cur := path; ; {
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			return filepath.Join(append([]string{resolved}, tail...)...)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return path
		}
		tail = append([]string{filepath.Base(cur)}, tail...)
		cur = parent
	}
}

// within returns path relative to root when it does not leave root.
func within(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || filepath.IsAbs(rel) {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}
