// Package proxy builds typed call proxies from a remote operation catalog.
// Each proxy validates its arguments against the advertised schema before
// the call leaves the process.
package proxy

import (
	"fmt"
)

// ParamType is the inferred type of one parameter. The variants mirror the
// JSON schema primitive types; anything the inference cannot pin down
// becomes Any, which accepts every value.
type ParamType interface {
	// Accepts reports whether a decoded JSON value fits the type.
	Accepts(value any) bool
	String() string
}

// StringType accepts JSON strings.
type StringType struct{}

func (StringType) Accepts(value any) bool { _, ok := value.(string); return ok }
func (StringType) String() string         { return "string" }

// IntType accepts JSON numbers with an integral value.
type IntType struct{}

func (IntType) Accepts(value any) bool {
	switch v := value.(type) {
	case int:
		return true
	case int64:
		return true
	case float64:
		return v == float64(int64(v))
	default:
		return false
	}
}
func (IntType) String() string { return "integer" }

// FloatType accepts any JSON number.
type FloatType struct{}

func (FloatType) Accepts(value any) bool {
	switch value.(type) {
	case int, int64, float64:
		return true
	default:
		return false
	}
}
func (FloatType) String() string { return "number" }

// BoolType accepts JSON booleans.
type BoolType struct{}

func (BoolType) Accepts(value any) bool { _, ok := value.(bool); return ok }
func (BoolType) String() string         { return "boolean" }

// ArrayType accepts JSON arrays whose elements fit the element type.
type ArrayType struct {
	Elem ParamType
}

func (t ArrayType) Accepts(value any) bool {
	items, ok := value.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if !t.Elem.Accepts(item) {
			return false
		}
	}
	return true
}
func (t ArrayType) String() string { return fmt.Sprintf("array of %s", t.Elem) }

// ObjectType accepts JSON objects.
type ObjectType struct{}

func (ObjectType) Accepts(value any) bool { _, ok := value.(map[string]any); return ok }
func (ObjectType) String() string         { return "object" }

// AnyType accepts every value. It is the fallback for schemas the inference
// cannot interpret, so an exotic schema degrades to no validation instead of
// rejecting valid calls.
type AnyType struct{}

func (AnyType) Accepts(any) bool { return true }
func (AnyType) String() string   { return "any" }

// InferType maps a JSON schema fragment to a ParamType. Unions (anyOf,
// oneOf), missing types and unknown type names all infer as Any.
func InferType(schema map[string]any) ParamType {
	if schema == nil {
		return AnyType{}
	}
	if _, ok := schema["anyOf"]; ok {
		return AnyType{}
	}
	if _, ok := schema["oneOf"]; ok {
		return AnyType{}
	}

	typeName, _ := schema["type"].(string)
	switch typeName {
	case "string":
		return StringType{}
	case "integer":
		return IntType{}
	case "number":
		return FloatType{}
	case "boolean":
		return BoolType{}
	case "object":
		return ObjectType{}
	case "array":
		items, _ := schema["items"].(map[string]any)
		if items == nil {
			return ArrayType{Elem: AnyType{}}
		}
		return ArrayType{Elem: InferType(items)}
	default:
		return AnyType{}
	}
}
