package memory

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/petasbytes/tool-runner/conversation"
)

// LoadConversation reads the turns stored at path. A missing file is an
// empty history, not an error.
func LoadConversation(path string) ([]conversation.Turn, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read history")
	}
	var turns []conversation.Turn
	if err := json.Unmarshal(b, &turns); err != nil {
		return nil, errors.Wrapf(err, "decode history %s", path)
	}
	return turns, nil
}

// SaveConversation writes turns to path as an indented JSON array, creating
// the parent directory when needed. The file is replaced atomically so an
// interrupted save leaves the previous history intact.
func SaveConversation(path string, turns []conversation.Turn) error {
	if turns == nil {
		turns = []conversation.Turn{}
	}
	b, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode history")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create history dir")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".history-*")
	if err != nil {
		return errors.Wrap(err, "write history")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write history")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "write history")
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.Wrap(err, "write history")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "replace history")
}
