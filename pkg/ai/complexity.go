package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const complexitySchema = `{
  "type": "object",
  "required": ["time", "space"],
  "properties": {
    "time": {"type": "string", "minLength": 1},
    "space": {"type": "string", "minLength": 1},
    "rationale": {"type": "string"}
  }
}`

var complexityValidator = mustCompileSchema("complexity.json", complexitySchema)

// FallbackComplexity is the default estimate. The rationale distinguishes a
// missing model from a failed estimate.
func FallbackComplexity(err error) ComplexityEstimate {
	rationale := "Estimation failed"
	if errors.Is(err, ErrNotConfigured) {
		rationale = "Default fallback"
	}
	return ComplexityEstimate{Time: "O(n)", Space: "O(1)", Rationale: rationale, Fallback: true}
}

// EstimateComplexity asks the model for a big-O estimate of code.
func (a *Assistant) EstimateComplexity(ctx context.Context, problem, code string) ComplexityEstimate {
	raw, err := a.generate(ctx, "complexity", complexityPrompt(problem, code))
	if err != nil {
		a.fallback("complexity", err, "")
		return FallbackComplexity(err)
	}

	var estimate ComplexityEstimate
	if err := decodeJSON(raw, complexityValidator, &estimate); err != nil {
		a.fallback("complexity", err, raw)
		return FallbackComplexity(err)
	}
	estimate.Time = strings.TrimSpace(estimate.Time)
	estimate.Space = strings.TrimSpace(estimate.Space)
	estimate.Fallback = false
	return estimate
}

func complexityPrompt(problem, code string) string {
	return fmt.Sprintf("Analyze the student's code for complexity.\n\nProblem: %s\nCode:\n%s\n\n"+
		`Output JSON like: {"time": "O(n)", "space": "O(1)", "rationale": "Why"}`, problem, code)
}
