package fsops

import (
	"encoding/json"
	"os"
	"path"

	"github.com/pkg/errors"

	"github.com/petasbytes/tool-runner/internal/safety"
)

// ListFiles returns the entries of relDir as a JSON array of names.
// Directories carry a trailing "/"; denied directories are left out.
func (s *Sandbox) ListFiles(relDir string) (string, error) {
	if relDir == "" {
		relDir = "."
	}
	absDir, err := safety.ValidateRelPath(s.readRoot, relDir)
	if err != nil {
		return "", err
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if safety.IsDenied(path.Join(relDir, e.Name())) {
			continue
		}
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}

	b, err := json.Marshal(names)
	if err != nil {
		return "", errors.Wrap(err, "encode listing")
	}
	return string(b), nil
}
