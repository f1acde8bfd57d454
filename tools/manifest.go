package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the name of the command tool manifest inside a tools root.
const ManifestFile = "tools.yaml"

// Manifest declares tools backed by external commands.
//
//	tools:
//	  - name: word_count
//	    description: Count words in a text.
//	    command: ["wc", "-w"]
//	    stdin_field: text
//	    input_schema:
//	      type: object
//	      properties:
//	        text: {type: string}
//	      required: [text]
type Manifest struct {
	Tools []CommandTool `yaml:"tools"`
}

// CommandTool runs Command with the tool input on stdin. When StdinField is
// set only that string field of the input is written, otherwise the raw JSON.
type CommandTool struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Command     []string          `yaml:"command"`
	StdinField  string            `yaml:"stdin_field,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"`
	InputSchema Schema            `yaml:"input_schema"`
}

// LoadManifest reads a manifest from path. A missing file yields an empty manifest.
func LoadManifest(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Manifest{}, nil
		}
		return nil, errors.Wrapf(err, "read %s", path)
	}
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return &m, nil
}

// Definitions turns every command tool into a ToolDefinition whose commands
// run in dir.
func (m *Manifest) Definitions(dir string) ([]ToolDefinition, error) {
	defs := make([]ToolDefinition, 0, len(m.Tools))
	for i, ct := range m.Tools {
		if ct.Name == "" {
			return nil, errors.Errorf("tools[%d]: name is empty", i)
		}
		if len(ct.Command) == 0 {
			return nil, errors.Errorf("tool %s: command is empty", ct.Name)
		}
		if ct.InputSchema.Type == "" {
			ct.InputSchema.Type = "object"
		}
		defs = append(defs, ToolDefinition{
			Name:        ct.Name,
			Description: ct.Description,
			InputSchema: ct.InputSchema,
			Function:    ct.handler(dir),
		})
	}
	return defs, nil
}

func (ct CommandTool) handler(dir string) Handler {
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		stdin := []byte(input)
		if ct.StdinField != "" {
			var fields map[string]any
			if err := json.Unmarshal(input, &fields); err != nil {
				return "", errors.Wrap(err, "decode input")
			}
			s, ok := fields[ct.StdinField].(string)
			if !ok {
				return "", errors.Errorf("input field %q must be a string", ct.StdinField)
			}
			stdin = []byte(s)
		}

		cmd := exec.CommandContext(ctx, ct.Command[0], ct.Command[1:]...)
		cmd.Dir = dir
		cmd.Stdin = bytes.NewReader(stdin)
		cmd.Env = os.Environ()
		for k, v := range ct.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = strings.TrimSpace(stdout.String())
			}
			if msg != "" {
				return "", errors.Wrap(err, msg)
			}
			return "", errors.Wrapf(err, "run %s", ct.Command[0])
		}
		return stdout.String(), nil
	}
}
