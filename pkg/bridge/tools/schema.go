package tools

import (
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// Schema wraps an OpenAPI schema used to validate tool arguments and webhook
// response payloads.
type Schema struct {
	inner *openapi3.Schema
}

func NewSchema(inner *openapi3.Schema) *Schema {
	if inner == nil {
		return nil
	}
	return &Schema{inner: inner}
}

// SchemaFromJSON parses a JSON schema document, as produced by the YAML tool
// file loader.
func SchemaFromJSON(data []byte) (*Schema, error) {
	var inner openapi3.Schema
	if err := inner.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return &Schema{inner: &inner}, nil
}

// Validate checks a decoded JSON value against the schema.
func (s *Schema) Validate(value any) error {
	if s == nil || s.inner == nil {
		return nil
	}
	return s.inner.VisitJSON(value)
}

// JSONMap renders the schema as a generic JSON object for wire declarations.
func (s *Schema) JSONMap() map[string]any {
	if s == nil || s.inner == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	data, err := json.Marshal(s.inner)
	if err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return out
}
