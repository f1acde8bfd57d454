package fsops

import (
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"

	"github.com/petasbytes/tool-runner/internal/safety"
)

// Glob matches a doublestar pattern ("**/*.go") against the read root and
// returns sorted slash-separated relative paths. Matches under denied
// directories are dropped.
func (s *Sandbox) Glob(pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, safety.ToolError{Code: safety.CodeBadPattern, Message: "invalid glob pattern"}
	}
	if _, err := safety.ValidateRelPath(s.readRoot, patternBase(pattern)); err != nil {
		return nil, err
	}

	matches, err := doublestar.Glob(os.DirFS(s.readRoot), pattern, doublestar.WithFailOnIOErrors())
	if err != nil {
		return nil, errors.Wrapf(err, "glob %s", pattern)
	}
	out := matches[:0]
	for _, m := range matches {
		if !safety.IsDenied(m) {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

// patternBase returns the static directory prefix of a pattern.
func patternBase(pattern string) string {
	base, _ := doublestar.SplitPattern(pattern)
	return base
}
