package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestCompile(t *testing.T) {
	type input struct {
		raw map[string]any
	}

	type expected struct {
		isNil  bool
		hasErr bool
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name:     "nil schema returns nil",
			input:    input{raw: nil},
			expected: expected{isNil: true},
		},
		{
			name: "valid schema compiles",
			input: input{
				raw: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"cap": map[string]any{"type": "integer"},
					},
				},
			},
		},
		{
			name: "unknown type fails",
			input: input{
				raw: map[string]any{"type": "widget"},
			},
			expected: expected{isNil: true, hasErr: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Compile(tt.input.raw)

			if tt.expected.hasErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			if tt.expected.isNil {
				assert.Nil(t, s)
			} else {
				require.NotNil(t, s)
				assert.NotNil(t, s.Raw())
			}
		})
	}
}

func TestSchema_Validate(t *testing.T) {
	type input struct {
		schema map[string]any
		doc    any
	}

	type expected struct {
		hasErr bool
	}

	settings := Strict(Fields{
		"compression": Nested("Compression", Fields{
			"enabled": Boolean("Global switch"),
			"cap":     Integer("Cap").Min(1).Max(1000),
			"ratio":   Number("Enhance ratio").Min(0).Max(1),
		}),
	})

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name: "valid document passes",
			input: input{
				schema: settings,
				doc: map[string]any{
					"compression": map[string]any{"enabled": true, "cap": 20, "ratio": 0.5},
				},
			},
		},
		{
			name:  "empty document passes",
			input: input{schema: settings, doc: map[string]any{}},
		},
		{
			name: "unknown top level key fails",
			input: input{
				schema: settings,
				doc:    map[string]any{"compresion": map[string]any{}},
			},
			expected: expected{hasErr: true},
		},
		{
			name: "unknown nested key fails",
			input: input{
				schema: settings,
				doc:    map[string]any{"compression": map[string]any{"capp": 3}},
			},
			expected: expected{hasErr: true},
		},
		{
			name: "out of range fails",
			input: input{
				schema: settings,
				doc:    map[string]any{"compression": map[string]any{"cap": 0}},
			},
			expected: expected{hasErr: true},
		},
		{
			name: "fraction for integer fails",
			input: input{
				schema: settings,
				doc:    map[string]any{"compression": map[string]any{"cap": 2.5}},
			},
			expected: expected{hasErr: true},
		},
		{
			name: "wrong type fails",
			input: input{
				schema: settings,
				doc:    map[string]any{"compression": map[string]any{"enabled": "yes please"}},
			},
			expected: expected{hasErr: true},
		},
		{
			name: "missing required field fails",
			input: input{
				schema: Object(Fields{"tag": String("Tag")}, "tag"),
				doc:    map[string]any{},
			},
			expected: expected{hasErr: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Compile(tt.input.schema)
			require.NoError(t, err)

			err = s.Validate(tt.input.doc)

			if tt.expected.hasErr {
				var verr *ValidationError
				assert.True(t, errors.As(err, &verr), "expected *ValidationError, got %T", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSchema_Validate_DecodedYAML(t *testing.T) {
	s := MustCompile(Strict(Fields{
		"cap":   Integer("Cap").Min(1),
		"ratio": Number("Ratio"),
		"gear": Array("Gear", Object(Fields{
			"tag":      String("Tag").MinLength(1),
			"min_gain": Number("Threshold").Min(0),
		}, "tag")),
	}))

	var good map[string]any
	require.NoError(t, yaml.Unmarshal([]byte("cap: 20\nratio: 1\ngear:\n  - {tag: G, min_gain: 2}\n"), &good))
	assert.NoError(t, s.Validate(good))

	var bad map[string]any
	require.NoError(t, yaml.Unmarshal([]byte("gear:\n  - {min_gain: 2}\n"), &bad))
	assert.Error(t, s.Validate(bad))
}

func TestSchema_Validate_NilSchema(t *testing.T) {
	var s *Schema
	err := s.Validate(map[string]any{"foo": "bar"})
	assert.NoError(t, err, "nil schema should always pass validation")
}

func TestMustCompile(t *testing.T) {
	assert.NotNil(t, MustCompile(map[string]any{"type": "object"}))
	assert.Nil(t, MustCompile(nil))
	assert.Panics(t, func() { MustCompile(map[string]any{"type": 7}) })
}

func TestObject_Basic(t *testing.T) {
	schema := Object(Fields{
		"name": String("Entry name"),
		"tag":  String("Modifier tag"),
	}, "tag")

	assert.Equal(t, "object", schema["type"])
	assert.NotContains(t, schema, "additionalProperties")

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok, "expected properties map")
	assert.Len(t, props, 2)

	required, ok := schema["required"].([]string)
	require.True(t, ok, "expected required array")
	assert.Equal(t, []string{"tag"}, required)
}

func TestStrict(t *testing.T) {
	schema := Strict(Fields{"cap": Integer("Cap")})

	assert.Equal(t, false, schema["additionalProperties"])
}

func TestNested(t *testing.T) {
	built := Nested("Kinds", Fields{
		"allow_mechanoids": Boolean("Mechanoids"),
	}, "allow_mechanoids").Build()

	assert.Equal(t, "object", built["type"])
	assert.Equal(t, false, built["additionalProperties"])
	assert.Equal(t, []string{"allow_mechanoids"}, built["required"])
	assert.Contains(t, built["properties"], "allow_mechanoids")
}

func TestField_Build(t *testing.T) {
	tests := []struct {
		name     string
		field    *Field
		expected map[string]any
	}{
		{
			name:  "string with constraints",
			field: String("Tag").MinLength(1).Pattern("^[A-Z_]+$"),
			expected: map[string]any{
				"type":        "string",
				"description": "Tag",
				"minLength":   1,
				"pattern":     "^[A-Z_]+$",
			},
		},
		{
			name:  "integer range",
			field: Integer("Cap").Min(1).Max(1000),
			expected: map[string]any{
				"type":        "integer",
				"description": "Cap",
				"minimum":     float64(1),
				"maximum":     float64(1000),
			},
		},
		{
			name:     "number",
			field:    Number("Ratio"),
			expected: map[string]any{"type": "number", "description": "Ratio"},
		},
		{
			name:     "boolean default",
			field:    Boolean("Enabled").Default(true),
			expected: map[string]any{"type": "boolean", "description": "Enabled", "default": true},
		},
		{
			name:  "enum",
			field: String("Fallback").Enum("none", "finalizer", "override"),
			expected: map[string]any{
				"type":        "string",
				"description": "Fallback",
				"enum":        []any{"none", "finalizer", "override"},
			},
		},
		{
			name:  "array",
			field: Array("Tags", map[string]any{"type": "string"}),
			expected: map[string]any{
				"type":        "array",
				"description": "Tags",
				"items":       map[string]any{"type": "string"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.field.Build())
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Err: nil}
	assert.Equal(t, "schema: invalid document: <nil>", err.Error())
}

func TestValidationError_Unwrap(t *testing.T) {
	inner := errors.New("cap: must be >= 1")
	outer := &ValidationError{Err: inner}

	assert.ErrorIs(t, outer, inner)
}
