package music

import (
	"context"
	"fmt"

	"github.com/snappy-loop/musicgen/internal/agent"
	"github.com/snappy-loop/musicgen/internal/config"
	"github.com/snappy-loop/musicgen/internal/models"
	"github.com/snappy-loop/musicgen/internal/modelslab"
)

const agentName = "ModelsLab Music Agent"

// AgentRunnerFactory returns a RunnerFactory that builds a fresh tool-calling
// agent per request: the configured LLM bound to the caller's LLM key, with a
// ModelsLab media tool bound to the caller's media key. Nothing is cached
// between requests, so keys live only as long as the request.
func AgentRunnerFactory(cfg *config.Config) RunnerFactory {
	return func(ctx context.Context, creds models.Credentials) (Runner, error) {
		model, err := agent.NewModel(ctx, agent.ModelConfig{
			Provider: cfg.LLMProvider,
			Model:    cfg.LLMModel,
			APIKey:   creds.LLMAPIKey,
			BaseURL:  cfg.LLMBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}

		media := modelslab.NewClient(creds.MediaAPIKey, modelslab.Options{
			BaseURL:           cfg.ModelsLabBaseURL,
			FileType:          models.FileTypeMP3,
			WaitForCompletion: cfg.ModelsLabWait,
			AddToETA:          cfg.ModelsLabAddToETA,
			MaxWait:           cfg.ModelsLabMaxWait,
			PollInterval:      cfg.ModelsLabPollInterval,
		})

		return agent.New(agentName, model, cfg.AgentMaxToolRuns, agent.NewMediaTool(media)), nil
	}
}
