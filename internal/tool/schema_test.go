package tool

import (
	"strings"
	"testing"
)

func sampleSchema() Schema {
	return NewSchema(
		Field{Name: "city", Type: TypeString, Description: "City name", Required: true},
		Field{Name: "days", Type: TypeInteger, Description: "Forecast days"},
		Field{Name: "units", Type: TypeString, Description: "Unit system", Enum: []string{"metric", "imperial"}},
	)
}

func TestSchemaValidate_Valid(t *testing.T) {
	err := sampleSchema().Validate(map[string]any{"city": "Hanoi", "days": float64(3), "units": "metric"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSchemaValidate_MissingRequired(t *testing.T) {
	err := sampleSchema().Validate(map[string]any{"days": float64(3)})
	if err == nil {
		t.Fatal("expected error for missing required field")
	}
	if !strings.Contains(err.Error(), `missing required field "city"`) {
		t.Fatalf("expected field-level detail, got %q", err.Error())
	}
}

func TestSchemaValidate_WrongType(t *testing.T) {
	err := sampleSchema().Validate(map[string]any{"city": float64(42)})
	if err == nil {
		t.Fatal("expected error for wrong-typed field")
	}
	if !strings.Contains(err.Error(), `field "city"`) {
		t.Fatalf("expected violation to name the field, got %q", err.Error())
	}
}

func TestSchemaValidate_NonIntegralInteger(t *testing.T) {
	err := sampleSchema().Validate(map[string]any{"city": "Hanoi", "days": 2.5})
	if err == nil {
		t.Fatal("expected error for non-integral integer field")
	}
}

func TestSchemaValidate_EnumViolation(t *testing.T) {
	err := sampleSchema().Validate(map[string]any{"city": "Hanoi", "units": "kelvin"})
	if err == nil {
		t.Fatal("expected error for enum violation")
	}
}

func TestSchemaValidate_OptionalAbsent(t *testing.T) {
	if err := sampleSchema().Validate(map[string]any{"city": "Hanoi"}); err != nil {
		t.Fatalf("optional fields may be absent: %v", err)
	}
}

func TestSchemaValidate_MultipleViolations(t *testing.T) {
	err := sampleSchema().Validate(map[string]any{"days": "soon", "units": "kelvin"})
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(verr.Violations) != 3 {
		t.Fatalf("expected 3 violations, got %d: %v", len(verr.Violations), verr.Violations)
	}
}

func TestSchemaDefinition(t *testing.T) {
	def := sampleSchema().Definition()
	if def["type"] != "object" {
		t.Fatalf("expected object type, got %v", def["type"])
	}
	props, ok := def["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties map, got %T", def["properties"])
	}
	if len(props) != 3 {
		t.Fatalf("expected 3 properties, got %d", len(props))
	}
	required, ok := def["required"].([]string)
	if !ok || len(required) != 1 || required[0] != "city" {
		t.Fatalf("expected required=[city], got %v", def["required"])
	}
	city := props["city"].(map[string]any)
	if city["type"] != "string" || city["description"] != "City name" {
		t.Fatalf("unexpected city property: %v", city)
	}
	units := props["units"].(map[string]any)
	if enum, ok := units["enum"].([]string); !ok || len(enum) != 2 {
		t.Fatalf("expected units enum with 2 values, got %v", units["enum"])
	}
}

func TestSchemaDefinition_NoRequired(t *testing.T) {
	def := NewSchema(Field{Name: "q", Type: TypeString}).Definition()
	if _, ok := def["required"]; ok {
		t.Fatal("required key should be omitted when no field is required")
	}
}
