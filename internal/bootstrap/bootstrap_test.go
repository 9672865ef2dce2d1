package bootstrap

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-autograder/internal/config"
	"github.com/noah-isme/gema-autograder/pkg/ai"
)

func TestAssistantWithoutKeyFallsBack(t *testing.T) {
	assistant, selector := Assistant(config.Config{AIAPIKey: ai.PlaceholderAPIKey}, zerolog.Nop())
	require.True(t, selector.Disabled())

	materials := assistant.GenerateMaterials(context.Background(), "reverse a string")
	require.True(t, materials.Fallback)
	require.Equal(t, ai.FallbackTests, materials.Tests)
}

func TestAssistantWithKeyIsEnabled(t *testing.T) {
	_, selector := Assistant(config.Config{AIAPIKey: "key", AIModels: []string{"m1"}}, zerolog.Nop())
	require.False(t, selector.Disabled())
	require.Empty(t, selector.Model())
}

func TestRunnerBackends(t *testing.T) {
	exec, closer, err := Runner(config.Config{RunnerBackend: config.RunnerBackendProcess, RunnerMaxConcurrent: 2}, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, exec)
	require.NoError(t, closer())

	_, _, err = Runner(config.Config{RunnerBackend: "wasm"}, zerolog.Nop())
	require.Error(t, err)
}
