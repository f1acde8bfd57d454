package tools

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sahilm/fuzzy"
)

var (
	ErrDuplicateTool = errors.New("tool already registered")
	ErrInvalidTool   = errors.New("invalid tool definition")
)

// Registry maps tool names to their definitions. Registration happens before
// a round starts; lookups during a round are read-only.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	order []string
}

// NewRegistry returns a registry holding defs.
func NewRegistry(defs ...ToolDefinition) (*Registry, error) {
	r := &Registry{tools: make(map[string]*Tool)}
	for _, d := range defs {
		if _, err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register validates def, compiles its input schema and stores it under def.Name.
func (r *Registry) Register(def ToolDefinition) (string, error) {
	if def.Name == "" {
		return "", errors.Wrap(ErrInvalidTool, "name is empty")
	}
	if def.Function == nil && def.ResultFunction == nil {
		return "", errors.Wrapf(ErrInvalidTool, "tool %s has no handler", def.Name)
	}
	compiled, err := def.InputSchema.compile()
	if err != nil {
		return "", errors.Wrapf(ErrInvalidTool, "tool %s: %v", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tools == nil {
		r.tools = make(map[string]*Tool)
	}
	if _, ok := r.tools[def.Name]; ok {
		return "", errors.Wrap(ErrDuplicateTool, def.Name)
	}
	r.tools[def.Name] = &Tool{ToolDefinition: def, schema: compiled}
	r.order = append(r.order, def.Name)
	return def.Name, nil
}

func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns definitions in registration order.
func (r *Registry) List() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].ToolDefinition)
	}
	return out
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Suggest returns the registered name that best matches a misspelled one.
func (r *Registry) Suggest(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	matches := fuzzy.Find(strings.ToLower(name), r.Names())
	if len(matches) == 0 {
		return "", false
	}
	return matches[0].Str, true
}
