package tools

import (
	"encoding/json"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// Schema is the JSON Schema subset a tool input may declare: string, number,
// integer, boolean, object and array, nested through properties and items.
type Schema struct {
	Type                 string             `json:"type,omitempty" yaml:"type,omitempty"`
	Description          string             `json:"description,omitempty" yaml:"description,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Items                *Schema            `json:"items,omitempty" yaml:"items,omitempty"`
	Required             []string           `json:"required,omitempty" yaml:"required,omitempty"`
	Enum                 []any              `json:"enum,omitempty" yaml:"enum,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty" yaml:"additionalProperties,omitempty"`
}

// GenerateSchema derives an object schema from the json and jsonschema tags of T.
// Fields without omitempty are required.
func GenerateSchema[T any]() Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	b, err := json.Marshal(reflector.Reflect(v))
	if err != nil {
		panic(errors.Wrap(err, "marshal reflected schema"))
	}
	var s Schema
	if err := json.Unmarshal(b, &s); err != nil {
		panic(errors.Wrap(err, "decode reflected schema"))
	}
	s.Type = "object"
	return s
}

// ObjectSchema is a convenience for handwritten schemas.
func ObjectSchema(properties map[string]*Schema, required ...string) Schema {
	return Schema{Type: "object", Properties: properties, Required: required}
}

func (s Schema) check() error {
	return s.checkAt("")
}

func (s Schema) checkAt(path string) error {
	switch s.Type {
	case "", "string", "number", "integer", "boolean", "null":
	case "object":
		for name, p := range s.Properties {
			if p == nil {
				return errors.Errorf("schema%s: property %q is empty", path, name)
			}
			if err := p.checkAt(path + "." + name); err != nil {
				return err
			}
		}
	case "array":
		if s.Items != nil {
			if err := s.Items.checkAt(path + "[]"); err != nil {
				return err
			}
		}
	default:
		return errors.Errorf("schema%s: unsupported type %q", path, s.Type)
	}
	return nil
}

func (s Schema) compile() (*gojsonschema.Schema, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if s.Type == "" {
		s.Type = "object"
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(s))
	if err != nil {
		return nil, errors.Wrap(err, "compile input schema")
	}
	return compiled, nil
}

// ValidationError lists every way an input failed its schema.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + strings.Join(e.Problems, "; ")
}

func validate(compiled *gojsonschema.Schema, input json.RawMessage) error {
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	res, err := compiled.Validate(gojsonschema.NewBytesLoader(input))
	if err != nil {
		return &ValidationError{Problems: []string{err.Error()}}
	}
	if res.Valid() {
		return nil
	}
	problems := make([]string, 0, len(res.Errors()))
	for _, desc := range res.Errors() {
		problems = append(problems, desc.String())
	}
	return &ValidationError{Problems: problems}
}
