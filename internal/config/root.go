package config

import (
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/petasbytes/tool-runner/internal/fsops"
	"github.com/petasbytes/tool-runner/memory"
	"github.com/petasbytes/tool-runner/tools"
)

const (
	SystemFile = "system.md"
	EnvFile    = ".env"
)

var ErrNoRoot = errors.New("tools root not found")

const manifestExample = `# Command tools available to the agent.
tools: []
#  - name: word_count
#    description: Count words in a text.
#    command: ["wc", "-w"]
#    stdin_field: text
#    input_schema:
#      type: object
#      properties:
#        text: {type: string, description: Text to count}
#      required: [text]
`

// ResolveRoot returns dir when set, otherwise <base>/<name>. The directory
// must exist.
func ResolveRoot(base, name, dir string) (string, error) {
	root := dir
	if root == "" {
		if name == "" {
			return "", errors.New("agent name required")
		}
		root = filepath.Join(base, name)
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return "", errors.Wrap(err, "resolve tools root")
	}
	fi, err := os.Stat(root)
	if err != nil || !fi.IsDir() {
		return "", errors.Wrapf(ErrNoRoot, "no directory found in %s", root)
	}
	return root, nil
}

// Scaffold creates a tools root holding an empty system prompt, an example
// manifest and a placeholder session context. Existing files are kept.
func Scaffold(root string) error {
	if err := os.MkdirAll(filepath.Join(root, memory.SessionsDir), 0o755); err != nil {
		return errors.Wrap(err, "create tools root")
	}
	files := map[string]string{
		SystemFile:         "",
		tools.ManifestFile: manifestExample,
		memory.ContextFile: "{\n  \"session_id\": \"0\"\n}",
	}
	for name, body := range files {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return errors.Wrapf(err, "write %s", name)
		}
	}
	return nil
}

// LoadSystem returns the system prompt of root, or "" when there is none.
// The prompt is a text/template with the sprig functions; .Root is the
// tools root, so a prompt may say {{ env "USER" }} or {{ now | date "2006-01-02" }}.
func LoadSystem(root string) (string, error) {
	b, err := os.ReadFile(filepath.Join(root, SystemFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", errors.Wrap(err, "read system prompt")
	}
	tmpl, err := template.New(SystemFile).
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(string(b))
	if err != nil {
		return "", errors.Wrap(err, "parse system prompt")
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, struct{ Root string }{Root: root}); err != nil {
		return "", errors.Wrap(err, "render system prompt")
	}
	return strings.TrimSpace(out.String()), nil
}

// LoadEnv exports the variables of <root>/.env that are not already set.
// Keys are upper-cased.
func LoadEnv(root string) error {
	path := filepath.Join(root, EnvFile)
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	ev := viper.New()
	ev.SetConfigFile(path)
	ev.SetConfigType("env")
	if err := ev.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	for _, key := range ev.AllKeys() {
		name := strings.ToUpper(key)
		if _, ok := os.LookupEnv(name); ok {
			continue
		}
		if err := os.Setenv(name, ev.GetString(key)); err != nil {
			return errors.Wrapf(err, "set %s", name)
		}
	}
	return nil
}

// Registry returns the file tools bound to sb plus the command tools
// declared in the manifest of root. Command tools run with root as working
// directory.
func Registry(root string, sb *fsops.Sandbox) (*tools.Registry, error) {
	m, err := tools.LoadManifest(filepath.Join(root, tools.ManifestFile))
	if err != nil {
		return nil, err
	}
	defs, err := m.Definitions(root)
	if err != nil {
		return nil, err
	}
	return tools.NewRegistry(append(tools.FileTools(sb), defs...)...)
}
