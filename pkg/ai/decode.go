package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// StripFences removes a surrounding markdown code fence (``` or ```json)
// from model output. Text without a fence is returned trimmed.
func StripFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}

	cleaned = strings.TrimPrefix(cleaned, "```")
	if idx := strings.Index(cleaned, "\n"); idx >= 0 {
		// Drop the info string (json, go, ...).
		if !strings.ContainsAny(strings.TrimSpace(cleaned[:idx]), " {[\"") {
			cleaned = cleaned[idx+1:]
		}
	}
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

func mustCompileSchema(name, source string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(source)); err != nil {
		panic(fmt.Sprintf("ai: add schema %s: %v", name, err))
	}
	return compiler.MustCompile(name)
}

// decodeJSON strips fences, validates the document against schema and then
// decodes it into target.
func decodeJSON(raw string, schema *jsonschema.Schema, target any) error {
	cleaned := StripFences(raw)
	if cleaned == "" {
		return fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	decoder := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	decoder.UseNumber()
	var document any
	if err := decoder.Decode(&document); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if err := schema.Validate(document); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if err := json.Unmarshal([]byte(cleaned), target); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
