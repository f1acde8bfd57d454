package fsops

import (
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/petasbytes/tool-runner/internal/safety"
)

// MaxReadBytes bounds the files ReadFile loads into memory.
const MaxReadBytes = 4 << 20

func (s *Sandbox) ReadFile(relPath string) (string, error) {
	absPath, err := safety.ValidateRelPath(s.readRoot, relPath)
	if err != nil {
		return "", err
	}

	fi, err := os.Stat(absPath)
	if err != nil {
		return "", err
	}
	if fi.IsDir() {
		return "", safety.ToolError{Code: safety.CodeNotAFile, Message: "path is a directory"}
	}
	if fi.Size() > MaxReadBytes {
		return "", safety.ToolError{
			Code:    safety.CodeFileTooLarge,
			Message: fmt.Sprintf("file is %d bytes, limit is %d", fi.Size(), MaxReadBytes),
		}
	}

	b, err := os.ReadFile(absPath)
	if err != nil {
		return "", errors.Wrapf(err, "read %s", relPath)
	}
	return string(b), nil
}
