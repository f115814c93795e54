package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		schema map[string]any
		want   string
	}{
		{"string", map[string]any{"type": "string"}, "string"},
		{"integer", map[string]any{"type": "integer"}, "integer"},
		{"number", map[string]any{"type": "number"}, "number"},
		{"boolean", map[string]any{"type": "boolean"}, "boolean"},
		{"object", map[string]any{"type": "object"}, "object"},
		{"string array", map[string]any{"type": "array", "items": map[string]any{"type": "string"}}, "array of string"},
		{"untyped array", map[string]any{"type": "array"}, "array of any"},
		{"nested array", map[string]any{"type": "array", "items": map[string]any{"type": "array", "items": map[string]any{"type": "integer"}}}, "array of array of integer"},
		{"missing type", map[string]any{"description": "whatever"}, "any"},
		{"nil schema", nil, "any"},
		{"anyOf union", map[string]any{"anyOf": []any{map[string]any{"type": "string"}}}, "any"},
		{"oneOf union", map[string]any{"oneOf": []any{map[string]any{"type": "integer"}}}, "any"},
		{"unknown type name", map[string]any{"type": "null"}, "any"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, InferType(tt.schema).String())
		})
	}
}

func TestTypeAcceptance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		typ   ParamType
		value any
		ok    bool
	}{
		{"string accepts string", StringType{}, "hello", true},
		{"string rejects number", StringType{}, 3.0, false},
		{"integer accepts whole float", IntType{}, 7.0, true},
		{"integer accepts int", IntType{}, 7, true},
		{"integer rejects fraction", IntType{}, 7.5, false},
		{"integer rejects string", IntType{}, "7", false},
		{"number accepts fraction", FloatType{}, 7.5, true},
		{"number rejects bool", FloatType{}, true, false},
		{"bool accepts bool", BoolType{}, false, true},
		{"bool rejects string", BoolType{}, "true", false},
		{"array checks elements", ArrayType{Elem: StringType{}}, []any{"a", "b"}, true},
		{"array rejects bad element", ArrayType{Elem: StringType{}}, []any{"a", 1.0}, false},
		{"array rejects scalar", ArrayType{Elem: AnyType{}}, "a", false},
		{"object accepts map", ObjectType{}, map[string]any{"k": "v"}, true},
		{"object rejects array", ObjectType{}, []any{}, false},
		{"any accepts anything", AnyType{}, struct{}{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.ok, tt.typ.Accepts(tt.value))
		})
	}
}
