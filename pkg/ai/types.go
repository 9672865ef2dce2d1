package ai

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by every generation call when no usable API
// key was supplied.
var ErrNotConfigured = errors.New("ai model not configured")

// ErrNoModels indicates the selector was built without candidate models.
var ErrNoModels = errors.New("no candidate models available")

// ErrMalformedResponse wraps any failure to turn model text into the
// expected JSON shape.
var ErrMalformedResponse = errors.New("malformed model response")

// Generator turns a prompt into a text completion.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Backend performs one completion against a named model.
type Backend interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// Materials is the scenario narrative and test suite generated for a problem.
type Materials struct {
	Scenario string `json:"scenario"`
	Tests    string `json:"tests"`
	Fallback bool   `json:"fallback"`
}

// ComplexityEstimate is a big-O estimate for a submission.
type ComplexityEstimate struct {
	Time      string `json:"time"`
	Space     string `json:"space"`
	Rationale string `json:"rationale"`
	Fallback  bool   `json:"fallback,omitempty"`
}

// Feedback is free-text tutoring feedback for a submission.
type Feedback struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
}
