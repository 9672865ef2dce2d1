// Package bootstrap builds the runner and AI assistant shared by the API
// server and the command line tools.
package bootstrap

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-autograder/internal/config"
	"github.com/noah-isme/gema-autograder/pkg/ai"
	"github.com/noah-isme/gema-autograder/pkg/runner"
)

// Runner builds the configured execution backend, capped at
// RunnerMaxConcurrent simultaneous runs. The returned closer releases
// backend resources.
func Runner(cfg config.Config, logger zerolog.Logger) (runner.Runner, func() error, error) {
	noop := func() error { return nil }

	switch cfg.RunnerBackend {
	case config.RunnerBackendDocker:
		docker, err := runner.NewDockerRunner(runner.DockerConfig{
			Host:          cfg.DockerHost,
			Image:         cfg.RunnerImage,
			Timeout:       cfg.ExecutionTimeout,
			MemoryLimitMB: int64(cfg.CodeRunMemoryMB),
			CPUShares:     int64(cfg.CodeRunCPUShares),
			WorkspaceRoot: cfg.RunnerWorkspaceRoot,
			Logger:        logger,
		})
		if err != nil {
			return nil, noop, err
		}
		return runner.WithConcurrencyLimit(docker, cfg.RunnerMaxConcurrent), docker.Close, nil
	case config.RunnerBackendProcess, "":
		process := runner.NewProcessRunner(runner.ProcessConfig{
			GoBinary:      cfg.RunnerGoBinary,
			WorkspaceRoot: cfg.RunnerWorkspaceRoot,
			Timeout:       cfg.ExecutionTimeout,
			Logger:        logger,
		})
		return runner.WithConcurrencyLimit(process, cfg.RunnerMaxConcurrent), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown runner backend %q", cfg.RunnerBackend)
	}
}

// Assistant builds the model selector and the assistant on top of it. A
// missing or placeholder key yields a disabled selector and every AI call
// falls back.
func Assistant(cfg config.Config, logger zerolog.Logger) (*ai.Assistant, *ai.ModelSelector) {
	var backend ai.Backend
	if openai, err := ai.NewOpenAIBackend(ai.OpenAIConfig{
		APIKey:      cfg.AIAPIKey,
		BaseURL:     cfg.AIBaseURL,
		MaxTokens:   cfg.AIMaxTokens,
		Temperature: cfg.AITemperature,
		Logger:      logger,
	}); err == nil {
		backend = openai
	}

	selector := ai.NewModelSelector(cfg.AIAPIKey, backend, cfg.AIModels, logger)
	return ai.NewAssistant(selector, logger), selector
}
