package llm

import "sort"

// Object builds a strict object schema in which every property is required.
func Object(properties map[string]any) map[string]any {
	required := make([]string, 0, len(properties))
	for name := range properties {
		required = append(required, name)
	}
	sort.Strings(required)

	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func Array(items map[string]any, description string) map[string]any {
	return withDescription(map[string]any{"type": "array", "items": items}, description)
}

func String(description string) map[string]any {
	return withDescription(map[string]any{"type": "string"}, description)
}

func Boolean(description string) map[string]any {
	return withDescription(map[string]any{"type": "boolean"}, description)
}

func Integer(description string) map[string]any {
	return withDescription(map[string]any{"type": "integer"}, description)
}

// Enum builds a string schema restricted to values.
func Enum(description string, values ...string) map[string]any {
	return withDescription(map[string]any{"type": "string", "enum": values}, description)
}

func withDescription(schema map[string]any, description string) map[string]any {
	if description != "" {
		schema["description"] = description
	}
	return schema
}
