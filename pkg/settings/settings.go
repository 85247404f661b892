// Package settings validates plugin instance settings against an OpenAPI
// schema declared by the plugin class.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// Schema wraps an OpenAPI schema object describing one plugin's settings.
type Schema struct {
	schema *openapi3.Schema
}

// Parse reads a schema from JSON or YAML and checks that it is well formed.
func Parse(data []byte) (*Schema, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("settings: schema is empty")
	}

	raw := data
	if !json.Valid(data) {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("settings: parse schema: invalid JSON or YAML: %w", err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("settings: parse schema: %w", err)
		}
		raw = converted
	}

	schema := &openapi3.Schema{}
	if err := json.Unmarshal(raw, schema); err != nil {
		return nil, fmt.Errorf("settings: decode schema: %w", err)
	}
	if err := schema.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("settings: invalid schema: %w", err)
	}
	return &Schema{schema: schema}, nil
}

// MustParse panics when data is not a valid schema. Intended for package-level
// class declarations.
func MustParse(data string) *Schema {
	schema, err := Parse([]byte(data))
	if err != nil {
		panic(err)
	}
	return schema
}

// FromOpenAPI wraps an already-built schema.
func FromOpenAPI(schema *openapi3.Schema) *Schema {
	if schema == nil {
		return nil
	}
	return &Schema{schema: schema}
}

// OpenAPI returns the wrapped schema.
func (s *Schema) OpenAPI() *openapi3.Schema {
	if s == nil {
		return nil
	}
	return s.schema
}

// Apply fills top-level defaults into a copy of values and validates the
// result. A nil schema accepts anything.
func (s *Schema) Apply(values map[string]any) (map[string]any, error) {
	normalised, err := normalise(values)
	if err != nil {
		return nil, err
	}
	if s == nil || s.schema == nil {
		return normalised, nil
	}

	for _, name := range s.propertyNames() {
		if _, present := normalised[name]; present {
			continue
		}
		ref := s.schema.Properties[name]
		if ref == nil || ref.Value == nil || ref.Value.Default == nil {
			continue
		}
		normalised[name] = ref.Value.Default
	}

	if err := s.schema.VisitJSON(map[string]any(normalised), openapi3.MultiErrors()); err != nil {
		return nil, &ValidationError{Err: err}
	}
	return normalised, nil
}

// Validate checks values without returning the defaulted copy.
func (s *Schema) Validate(values map[string]any) error {
	_, err := s.Apply(values)
	return err
}

func (s *Schema) propertyNames() []string {
	names := make([]string, 0, len(s.schema.Properties))
	for name := range s.schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidationError reports settings rejected by a schema.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("settings: invalid settings: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// normalise routes values through JSON so YAML-decoded integers and nested
// maps reach the validator as the JSON types it expects.
func normalise(values map[string]any) (map[string]any, error) {
	if len(values) == 0 {
		return map[string]any{}, nil
	}
	b, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("settings: encode settings: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("settings: decode settings: %w", err)
	}
	return out, nil
}
