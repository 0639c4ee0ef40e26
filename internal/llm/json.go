package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

var (
	openFence  = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	closeFence = regexp.MustCompile("\\s*```$")
)

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(text string) string {
	raw := strings.TrimSpace(text)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = openFence.ReplaceAllString(raw, "")
	return closeFence.ReplaceAllString(raw, "")
}

// Decode strips code fences from text, validates the JSON against
// req.Schema (when set) and unmarshals it into out. Any mismatch is
// ErrMalformedOutput; nothing is partially accepted.
func Decode(req Request, text string, out any) error {
	stripped := StripFences(text)
	if stripped == "" {
		return fmt.Errorf("%w: empty response", ErrMalformedOutput)
	}

	if req.Schema != nil {
		schema, err := compileSchema(req.Schema, req.Lenient)
		if err != nil {
			return err
		}
		instance, err := jsonschema.UnmarshalJSON(strings.NewReader(stripped))
		if err != nil {
			return fmt.Errorf("%w: %v\n%s", ErrMalformedOutput, err, truncate(text, 500))
		}
		if err := schema.Validate(instance); err != nil {
			return fmt.Errorf("%w: %s does not match its schema: %v", ErrMalformedOutput, req.Name, err)
		}
	}

	if err := json.Unmarshal([]byte(stripped), out); err != nil {
		return fmt.Errorf("%w: %v\n%s", ErrMalformedOutput, err, truncate(text, 500))
	}
	return nil
}

// Compiled schemas keyed by their JSON text.
var schemaCache sync.Map

func compileSchema(schema map[string]any, lenient []string) (*jsonschema.Schema, error) {
	data, err := json.Marshal(relaxEnums(schema, lenient))
	if err != nil {
		return nil, fmt.Errorf("%w: schema: %v", ErrInvalidConfig, err)
	}
	key := string(data)
	if cached, ok := schemaCache.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: schema: %v", ErrInvalidConfig, err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("%w: schema: %v", ErrInvalidConfig, err)
	}
	compiled, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("%w: schema: %v", ErrInvalidConfig, err)
	}

	schemaCache.Store(key, compiled)
	return compiled, nil
}

// relaxEnums returns a copy of schema without the enum of every property
// named in lenient.
func relaxEnums(schema map[string]any, lenient []string) map[string]any {
	if len(lenient) == 0 {
		return schema
	}

	out := make(map[string]any, len(schema))
	for k, v := range schema {
		switch child := v.(type) {
		case map[string]any:
			if k == "properties" {
				props := make(map[string]any, len(child))
				for name, prop := range child {
					p, ok := prop.(map[string]any)
					if !ok {
						props[name] = prop
						continue
					}
					p = relaxEnums(p, lenient)
					if slices.Contains(lenient, name) {
						p = withoutKey(p, "enum")
					}
					props[name] = p
				}
				out[k] = props
				continue
			}
			out[k] = relaxEnums(child, lenient)
		default:
			out[k] = v
		}
	}
	return out
}

func withoutKey(m map[string]any, key string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k != key {
			out[k] = v
		}
	}
	return out
}

// schemaInstruction appends the schema to the system prompt for gateways that
// cannot enforce a response format.
func schemaInstruction(req Request) string {
	if req.Schema == nil {
		return req.System
	}
	schema, err := json.Marshal(req.Schema)
	if err != nil {
		return req.System
	}

	var b strings.Builder
	b.WriteString(req.System)
	if req.System != "" {
		b.WriteString("\n\n")
	}
	b.WriteString("Respond with a single JSON object and nothing else. It must match this JSON schema:\n")
	b.Write(schema)
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
