package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "secret")
	t.Setenv("GEMA_AI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, 10*time.Second, cfg.ExecutionTimeout)
	require.Equal(t, 5*time.Minute, cfg.DashboardCacheTTL)
	require.Equal(t, RunnerBackendProcess, cfg.RunnerBackend)
	require.Equal(t, int64(4), cfg.RunnerMaxConcurrent)
	require.Equal(t, []string{"gemini-2.5-flash", "gemini-2.5-pro", "gemini-pro-latest", "gemini-flash-latest"}, cfg.AIModels)
	require.Equal(t, "gema.enrichment", cfg.EnrichmentSubject)
	require.Empty(t, cfg.AIAPIKey)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)

	_, err = LoadTooling()
	require.NoError(t, err)
}

func TestLoadFallsBackToGeminiKey(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "secret")
	t.Setenv("GEMA_AI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", " gem-key ")
	t.Setenv("GEMA_AI_MODELS", "model-a, ,model-b")
	t.Setenv("GEMA_EXECUTION_TIMEOUT_MS", "2500")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "gem-key", cfg.AIAPIKey)
	require.Equal(t, []string{"model-a", "model-b"}, cfg.AIModels)
	require.Equal(t, 2500*time.Millisecond, cfg.ExecutionTimeout)
}

func TestLoadRejectsUnknownRunnerBackend(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "secret")
	t.Setenv("GEMA_RUNNER_BACKEND", "wasm")

	_, err := Load()
	require.ErrorContains(t, err, "wasm")
}
