// Package fsops implements the file operations behind the built-in tools,
// confined to a sandbox read root and write root.
package fsops

import (
	"github.com/petasbytes/tool-runner/internal/safety"
)

// Sandbox resolves tool paths against its roots. Paths handed to it are
// relative; policy violations come back as safety.ToolError.
type Sandbox struct {
	readRoot  string
	writeRoot string
}

// NewSandbox resolves the roots to absolute, symlink-free paths. An empty
// readRoot means the working directory, an empty writeRoot the read root.
func NewSandbox(readRoot, writeRoot string) (*Sandbox, error) {
	r, w, err := safety.InitSandboxRoot(readRoot, writeRoot)
	if err != nil {
		return nil, err
	}
	return &Sandbox{readRoot: r, writeRoot: w}, nil
}

func (s *Sandbox) Roots() (read, write string) {
	return s.readRoot, s.writeRoot
}
