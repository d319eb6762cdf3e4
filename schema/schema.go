// Package schema builds JSON Schemas and validates decoded documents against them.
//
// The config package uses it to check a settings file before the values are laid over the
// defaults, so that a typo in a key or an out-of-range cap is reported with its location
// instead of being silently ignored.
//
// # Quick Start
//
//	settings := schema.MustCompile(schema.Strict(schema.Fields{
//	    "compression": schema.Nested("Compression switches", schema.Fields{
//	        "enabled": schema.Boolean("Global switch").Default(true),
//	        "cap":     schema.Integer("Maximum agents per event").Min(1).Max(1000),
//	    }),
//	}))
//
//	var doc map[string]any
//	_ = yaml.Unmarshal(data, &doc)
//	if err := settings.Validate(doc); err != nil {
//	    return err
//	}
//
// Documents decoded from YAML are normalized through JSON before validation, so integer
// and float values decoded by any library validate the same way.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const resourceURL = "spawncap-schema.json"

// Schema is a compiled JSON Schema together with the document it was compiled from.
type Schema struct {
	raw      map[string]any
	compiled *jsonschema.Schema
}

// Raw returns the schema document.
func (s *Schema) Raw() map[string]any {
	if s == nil {
		return nil
	}
	return s.raw
}

// Validate checks a decoded document. A nil Schema accepts everything.
func (s *Schema) Validate(doc any) error {
	if s == nil || s.compiled == nil {
		return nil
	}
	v, err := jsonValue(doc)
	if err != nil {
		return &ValidationError{Err: fmt.Errorf("document is not JSON compatible: %w", err)}
	}
	if err := s.compiled.Validate(v); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// jsonValue round-trips v through encoding/json into the value model the validator
// expects.
func jsonValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(data))
}

// ValidationError is returned by Validate for documents the schema rejects.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema: invalid document: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Compile compiles a schema document. A nil document compiles to a nil Schema.
func Compile(raw map[string]any) (*Schema, error) {
	if raw == nil {
		return nil, nil
	}
	doc, err := jsonValue(raw)
	if err != nil {
		return nil, fmt.Errorf("schema: encode document: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(resourceURL, doc); err != nil {
		return nil, fmt.Errorf("schema: add resource: %w", err)
	}
	compiled, err := c.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("schema: compile: %w", err)
	}
	return &Schema{raw: raw, compiled: compiled}, nil
}

// MustCompile is Compile for package-level schemas; it panics on error.
func MustCompile(raw map[string]any) *Schema {
	s, err := Compile(raw)
	if err != nil {
		panic(err)
	}
	return s
}

// -----------------------------------------------------------------------------
// Builders
// -----------------------------------------------------------------------------

// Fields maps property names to their definitions.
type Fields map[string]*Field

func (fs Fields) build() map[string]any {
	out := make(map[string]any, len(fs))
	for name, f := range fs {
		out[name] = f.Build()
	}
	return out
}

// Object is an object schema with the given properties; required names the properties
// that must be present.
//
//	schema.Object(schema.Fields{
//	    "tag":      schema.String("Modifier tag"),
//	    "min_gain": schema.Number("Lowest gain that unlocks the entry").Min(0),
//	}, "tag")
func Object(fields Fields, required ...string) map[string]any {
	out := map[string]any{"type": "object", "properties": fields.build()}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

// Strict is Object with unknown properties rejected.
func Strict(fields Fields, required ...string) map[string]any {
	out := Object(fields, required...)
	out["additionalProperties"] = false
	return out
}

// Field is one property definition. Its methods set JSON Schema keywords and return the
// field for chaining.
type Field struct {
	keywords map[string]any
}

func newField(typ, description string) *Field {
	f := &Field{keywords: map[string]any{"type": typ}}
	if description != "" {
		f.keywords["description"] = description
	}
	return f
}

func (f *Field) set(keyword string, value any) *Field {
	f.keywords[keyword] = value
	return f
}

// Build returns the property's schema document.
func (f *Field) Build() map[string]any {
	out := make(map[string]any, len(f.keywords))
	for k, v := range f.keywords {
		out[k] = v
	}
	return out
}

func String(description string) *Field  { return newField("string", description) }
func Integer(description string) *Field { return newField("integer", description) }
func Number(description string) *Field  { return newField("number", description) }
func Boolean(description string) *Field { return newField("boolean", description) }

// Array is a list whose elements match items.
func Array(description string, items map[string]any) *Field {
	return newField("array", description).set("items", items)
}

// Nested is a closed object property: unknown keys inside it are rejected.
func Nested(description string, fields Fields, required ...string) *Field {
	f := newField("object", description).
		set("properties", fields.build()).
		set("additionalProperties", false)
	if len(required) > 0 {
		f.set("required", required)
	}
	return f
}

func (f *Field) Enum(values ...any) *Field { return f.set("enum", values) }
func (f *Field) Min(v float64) *Field      { return f.set("minimum", v) }
func (f *Field) Max(v float64) *Field      { return f.set("maximum", v) }
func (f *Field) MinLength(n int) *Field    { return f.set("minLength", n) }
func (f *Field) Pattern(re string) *Field  { return f.set("pattern", re) }

// Default records the default value. It documents the field; validation does not fill
// it in.
func (f *Field) Default(value any) *Field { return f.set("default", value) }
