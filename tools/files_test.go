package tools_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petasbytes/tool-runner/internal/fsops"
	"github.com/petasbytes/tool-runner/tools"
)

// workspace is a temporary sandbox with the file tools bound to it.
type workspace struct {
	root  string
	tools map[string]tools.ToolDefinition
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	sb, err := fsops.NewSandbox(t.TempDir(), "")
	require.NoError(t, err)
	root, _ := sb.Roots()
	ws := &workspace{root: root, tools: map[string]tools.ToolDefinition{}}
	for _, def := range tools.FileTools(sb) {
		ws.tools[def.Name] = def
	}
	return ws
}

func (ws *workspace) write(t *testing.T, rel, body string) {
	t.Helper()
	path := filepath.Join(ws.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func (ws *workspace) read(t *testing.T, rel string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(ws.root, rel))
	require.NoError(t, err)
	return string(b)
}

// call runs the named tool with in encoded as its JSON input.
func (ws *workspace) call(t *testing.T, name string, in any) (string, error) {
	t.Helper()
	def, ok := ws.tools[name]
	require.True(t, ok, "no tool %s", name)
	raw, err := json.Marshal(in)
	require.NoError(t, err)
	return def.Function(context.Background(), raw)
}
