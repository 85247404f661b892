package settings

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const gallerySchema = `
type: object
properties:
  title:
    type: string
  columns:
    type: integer
    minimum: 1
    default: 3
required:
  - title
`

func TestParse_YAMLAndApplyDefaults(t *testing.T) {
	schema, err := Parse([]byte(gallerySchema))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	got, err := schema.Apply(map[string]any{"title": "Spring"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := map[string]any{"title": "Spring", "columns": float64(3)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("settings mismatch (-want +got):\n%s", diff)
	}
}

func TestApply_NormalisesYAMLIntegers(t *testing.T) {
	schema := MustParse(`{"type":"object","properties":{"columns":{"type":"integer","minimum":1}}}`)

	got, err := schema.Apply(map[string]any{"columns": 4})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got["columns"] != float64(4) {
		t.Fatalf("expected JSON number, got %#v", got["columns"])
	}
}

func TestApply_RejectsInvalidSettings(t *testing.T) {
	schema := MustParse(gallerySchema)

	cases := []struct {
		name   string
		values map[string]any
	}{
		{name: "missing required", values: map[string]any{"columns": 2}},
		{name: "below minimum", values: map[string]any{"title": "x", "columns": 0}},
		{name: "wrong type", values: map[string]any{"title": 12}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := schema.Validate(tc.values)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestNilSchemaAcceptsAnything(t *testing.T) {
	var schema *Schema
	got, err := schema.Apply(map[string]any{"any": "thing"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got["any"] != "thing" {
		t.Fatalf("expected values passed through, got %v", got)
	}
}

func TestParse_RejectsEmpty(t *testing.T) {
	if _, err := Parse([]byte("  ")); err == nil {
		t.Fatalf("expected error for empty schema")
	}
}
