package tools_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/tool-runner/tools"
)

func TestEditFile_CreateNew(t *testing.T) {
	ws := newWorkspace(t)

	out, err := ws.call(t, "edit_file", tools.EditFileInput{Path: "docs/new.txt", NewStr: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "Successfully created file docs/new.txt", out)
	assert.Equal(t, "hello", ws.read(t, "docs/new.txt"))
}

func TestEditFile_ReplaceAll(t *testing.T) {
	ws := newWorkspace(t)
	ws.write(t, "a.txt", "abc abc")

	out, err := ws.call(t, "edit_file", tools.EditFileInput{Path: "a.txt", OldStr: "abc", NewStr: "XYZ"})
	require.NoError(t, err)
	assert.Equal(t, "OK", out)
	assert.Equal(t, "XYZ XYZ", ws.read(t, "a.txt"))
}

func TestEditFile_Errors(t *testing.T) {
	ws := newWorkspace(t)
	ws.write(t, "a.txt", "abc")

	cases := []struct {
		name string
		in   tools.EditFileInput
		want string
	}{
		{"OldNotFound", tools.EditFileInput{Path: "a.txt", OldStr: "nope", NewStr: "x"}, "old_str not found"},
		{"EmptyPath", tools.EditFileInput{OldStr: "a", NewStr: "b"}, "invalid edit parameters"},
		{"SameStrings", tools.EditFileInput{Path: "a.txt", OldStr: "x", NewStr: "x"}, "invalid edit parameters"},
		{"ExistingNeedsOldStr", tools.EditFileInput{Path: "a.txt", NewStr: "x"}, "old_str must be provided"},
		{"MissingFileWithOldStr", tools.EditFileInput{Path: "b.txt", OldStr: "a", NewStr: "b"}, "no such file"},
		{"DenyGit", tools.EditFileInput{Path: ".git/HEAD", NewStr: "ref: refs/heads/main\n"}, "ERR_DENIED_WRITE"},
		{"DenyAgent", tools.EditFileInput{Path: ".agent/conversation.json", NewStr: "{}"}, "ERR_DENIED_WRITE"},
		{"DenyGoMod", tools.EditFileInput{Path: "go.mod", NewStr: "module x\n"}, "ERR_DENIED_WRITE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ws.call(t, "edit_file", tc.in)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
	assert.Equal(t, "abc", ws.read(t, "a.txt"))
}
