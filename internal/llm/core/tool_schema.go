package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
)

var toolSchemaReflector = jsonschema.Reflector{
	DoNotReference:            true,
	AllowAdditionalProperties: false,
}

// ToolJSONSchema is the normalized object-schema used by provider mappings.
type ToolJSONSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required"`
}

// NewToolSpecFromStruct creates a ToolSpec by reflecting a Go struct into JSON Schema.
func NewToolSpecFromStruct(name, description string, schemaStruct any) (ToolSpec, error) {
	target, err := schemaReflectionTarget(schemaStruct)
	if err != nil {
		return ToolSpec{}, err
	}

	raw, err := json.Marshal(toolSchemaReflector.Reflect(target))
	if err != nil {
		return ToolSpec{}, fmt.Errorf("marshal generated tool schema: %w", err)
	}
	decoded, err := DecodeToolJSONSchema(raw)
	if err != nil {
		return ToolSpec{}, err
	}
	normalized, err := json.Marshal(decoded)
	if err != nil {
		return ToolSpec{}, fmt.Errorf("marshal normalized tool schema: %w", err)
	}

	return ToolSpec{
		Name:        name,
		Description: description,
		Schema:      normalized,
	}, nil
}

// schemaReflectionTarget validates schemaStruct and returns a concrete struct pointer.
func schemaReflectionTarget(schemaStruct any) (any, error) {
	t := reflect.TypeOf(schemaStruct)
	if t == nil {
		return nil, fmt.Errorf("%w: schema struct is nil", ErrInvalidRequest)
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: schema struct must be a struct or pointer to struct", ErrInvalidRequest)
	}
	return reflect.New(t).Interface(), nil
}

// DecodeToolJSONSchema validates and normalizes a tool schema JSON object.
func DecodeToolJSONSchema(raw json.RawMessage) (ToolJSONSchema, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ToolJSONSchema{Type: "object", Properties: map[string]any{}}, nil
	}

	var schema ToolJSONSchema
	if err := json.Unmarshal(trimmed, &schema); err != nil {
		return ToolJSONSchema{}, fmt.Errorf("%w: invalid tool schema json", ErrInvalidRequest)
	}

	if strings.TrimSpace(schema.Type) == "" {
		schema.Type = "object"
	}
	if schema.Type != "object" {
		return ToolJSONSchema{}, fmt.Errorf("%w: tool schema type must be object", ErrInvalidRequest)
	}
	if schema.Properties == nil {
		schema.Properties = map[string]any{}
	}
	return schema, nil
}
