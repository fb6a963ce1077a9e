package tool

import (
	"fmt"
	"strings"
)

// Field types map to JSON Schema primitive types.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// Field declares one named parameter of a tool.
type Field struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Enum        []string
}

// Schema is the ordered parameter declaration for a tool. It renders to a
// JSON-Schema object for the oracle catalog and validates raw payloads before
// any implementation runs.
type Schema struct {
	Fields []Field
}

func NewSchema(fields ...Field) Schema {
	return Schema{Fields: fields}
}

// Definition renders the schema as a JSON-Schema "parameters" object.
func (s Schema) Definition() map[string]any {
	props := make(map[string]any, len(s.Fields))
	var required []string
	for _, f := range s.Fields {
		prop := map[string]any{"type": f.Type, "description": f.Description}
		if len(f.Enum) > 0 {
			prop["enum"] = f.Enum
		}
		props[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}
	def := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		def["required"] = required
	}
	return def
}

// ValidationError carries field-level violations from a failed payload check.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid arguments: " + strings.Join(e.Violations, "; ")
}

// Validate checks a raw payload against the schema: every required field must
// be present and every supplied field must match its declared type.
func (s Schema) Validate(args map[string]any) error {
	var violations []string
	for _, f := range s.Fields {
		v, ok := args[f.Name]
		if !ok || v == nil {
			if f.Required {
				violations = append(violations, fmt.Sprintf("missing required field %q", f.Name))
			}
			continue
		}
		if msg := checkType(f, v); msg != "" {
			violations = append(violations, msg)
		}
	}
	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// checkType verifies a decoded JSON value against a field declaration.
// JSON decoding yields string, float64, bool, []any, and map[string]any.
func checkType(f Field, v any) string {
	switch f.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return fmt.Sprintf("field %q: expected string, got %T", f.Name, v)
		}
		if len(f.Enum) > 0 && !contains(f.Enum, s) {
			return fmt.Sprintf("field %q: %q is not one of %v", f.Name, s, f.Enum)
		}
	case TypeNumber:
		if !isNumber(v) {
			return fmt.Sprintf("field %q: expected number, got %T", f.Name, v)
		}
	case TypeInteger:
		fv, ok := toFloat(v)
		if !ok {
			return fmt.Sprintf("field %q: expected integer, got %T", f.Name, v)
		}
		if fv != float64(int64(fv)) {
			return fmt.Sprintf("field %q: expected integer, got %v", f.Name, fv)
		}
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Sprintf("field %q: expected boolean, got %T", f.Name, v)
		}
	case TypeArray:
		if _, ok := v.([]any); !ok {
			return fmt.Sprintf("field %q: expected array, got %T", f.Name, v)
		}
	case TypeObject:
		if _, ok := v.(map[string]any); !ok {
			return fmt.Sprintf("field %q: expected object, got %T", f.Name, v)
		}
	}
	return ""
}

func isNumber(v any) bool {
	_, ok := toFloat(v)
	return ok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
