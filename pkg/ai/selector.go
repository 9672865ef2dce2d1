package ai

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// PlaceholderAPIKey is the sample value shipped in example env files.
const PlaceholderAPIKey = "YOUR_API_KEY_HERE"

// DefaultModels is the probe order used when no candidates are configured.
var DefaultModels = []string{
	"gemini-2.5-flash",
	"gemini-2.5-pro",
	"gemini-pro-latest",
	"gemini-flash-latest",
}

// ModelSelector probes candidate models in order until one answers, then
// pins that model for the rest of the process lifetime. Without a usable API
// key it is disabled and fails every call with ErrNotConfigured.
type ModelSelector struct {
	backend    Backend
	candidates []string
	disabled   bool
	logger     zerolog.Logger

	mu      sync.RWMutex
	pinned  string
	probeMu sync.Mutex
}

// NewModelSelector builds the selector. A nil backend is treated like a
// missing key.
func NewModelSelector(apiKey string, backend Backend, candidates []string, logger zerolog.Logger) *ModelSelector {
	if len(candidates) == 0 {
		candidates = DefaultModels
	}

	s := &ModelSelector{
		backend:    backend,
		candidates: append([]string(nil), candidates...),
		logger:     logger.With().Str("component", "model_selector").Logger(),
	}

	key := strings.TrimSpace(apiKey)
	if key == "" || key == PlaceholderAPIKey || backend == nil {
		s.disabled = true
		s.logger.Warn().Msg("no valid AI API key provided, AI features disabled")
	}

	return s
}

// Disabled reports whether the selector was built without a usable key.
func (s *ModelSelector) Disabled() bool {
	return s.disabled
}

// Model returns the pinned model, or "" while unresolved.
func (s *ModelSelector) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pinned
}

// Generate implements Generator.
func (s *ModelSelector) Generate(ctx context.Context, prompt string) (string, error) {
	if s.disabled {
		return "", ErrNotConfigured
	}

	if model := s.Model(); model != "" {
		return s.backend.Complete(ctx, model, prompt)
	}

	s.probeMu.Lock()
	defer s.probeMu.Unlock()

	// Another caller may have pinned a model while we waited.
	if model := s.Model(); model != "" {
		return s.backend.Complete(ctx, model, prompt)
	}

	var lastErr error
	for _, model := range s.candidates {
		text, err := s.backend.Complete(ctx, model, prompt)
		if err != nil {
			lastErr = err
			s.logger.Warn().Err(err).Str("model", model).Msg("model candidate failed")
			continue
		}

		s.mu.Lock()
		s.pinned = model
		s.mu.Unlock()
		s.logger.Info().Str("model", model).Msg("model selected")
		return text, nil
	}

	if lastErr == nil {
		lastErr = ErrNoModels
	}
	return "", lastErr
}
