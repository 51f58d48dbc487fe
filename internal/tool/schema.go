package tool

import "encoding/json"

// SchemaBuilder is a fluent helper for constructing a Tool's ParametersSchema,
// grounded on the flynn project's schemas.SchemaBuilder.
type SchemaBuilder struct {
	properties map[string]any
	required   []string
}

// NewSchema starts a new object schema.
func NewSchema() *SchemaBuilder {
	return &SchemaBuilder{properties: make(map[string]any)}
}

// AddParam adds a parameter without an enum constraint.
func (b *SchemaBuilder) AddParam(name, paramType, description string, required bool) *SchemaBuilder {
	b.properties[name] = map[string]any{
		"type":        paramType,
		"description": description,
	}
	if required {
		b.required = append(b.required, name)
	}
	return b
}

// AddParamWithEnum adds a parameter constrained to a fixed set of values.
func (b *SchemaBuilder) AddParamWithEnum(name, paramType, description string, enum []string, required bool) *SchemaBuilder {
	def := map[string]any{
		"type":        paramType,
		"description": description,
	}
	if len(enum) > 0 {
		def["enum"] = enum
	}
	b.properties[name] = def
	if required {
		b.required = append(b.required, name)
	}
	return b
}

// Build returns the assembled JSON-schema-shaped object.
func (b *SchemaBuilder) Build() map[string]any {
	required := b.required
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": b.properties,
		"required":   required,
	}
}

// CanonicalJSON renders a schema as canonical JSON for inclusion in prompts.
// encoding/json.Marshal on a map[string]any already sorts object keys
// lexicographically, which is what canonicalizes the schema without a
// third-party canonical-JSON library.
func CanonicalJSON(schema map[string]any) string {
	b, err := json.Marshal(schema)
	if err != nil {
		return "{}"
	}
	return string(b)
}
