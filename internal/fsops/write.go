package fsops

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/petasbytes/tool-runner/internal/safety"
)

// WriteFile replaces the file at relPath with content, creating parent
// directories. The new content is written to a temporary file and renamed
// into place; an existing file keeps its permissions.
func (s *Sandbox) WriteFile(relPath, content string) error {
	absPath, err := safety.ValidateWritePath(s.writeRoot, relPath)
	if err != nil {
		return err
	}

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(relPath))
	}

	mode := os.FileMode(0o644)
	if fi, err := os.Stat(absPath); err == nil {
		if fi.IsDir() {
			return safety.ToolError{Code: safety.CodeNotAFile, Message: "path is a directory"}
		}
		mode = fi.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, ".agent-write-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %s", relPath)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "write %s", relPath)
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return errors.Wrapf(err, "chmod %s", relPath)
	}
	return errors.Wrapf(os.Rename(tmp.Name(), absPath), "replace %s", relPath)
}

// CreateFile writes content to a new file at relPath. An existing file is
// left alone and reported as ERR_FILE_EXISTS.
func (s *Sandbox) CreateFile(relPath, content string) error {
	absPath, err := safety.ValidateWritePath(s.writeRoot, relPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(relPath))
	}

	f, err := os.OpenFile(absPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if os.IsExist(err) {
		return safety.ToolError{Code: safety.CodeFileExists, Message: "file already exists"}
	}
	if err != nil {
		return errors.Wrapf(err, "create %s", relPath)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", relPath)
	}
	return errors.Wrapf(f.Close(), "write %s", relPath)
}
