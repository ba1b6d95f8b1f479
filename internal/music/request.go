package music

import (
	"strings"

	"github.com/snappy-loop/musicgen/internal/models"
)

// AgentDescription is the fixed role given to the hosted agent.
const AgentDescription = "You are an AI agent that generates high-quality instrumental music using the ModelsLab API."

// AgentInstructions tells the agent what a good generation prompt must contain.
var AgentInstructions = []string{
	"When generating music, always use the `generate_media` tool with ultra-detailed prompts.",
	"Include these details:",
	"- Genre & style",
	"- Instruments used",
	"- Tempo & rhythm",
	"- Mood & emotional tone",
	"- Song structure (intro / verse / chorus / bridge / outro)",
	"Create clear, rich and structured prompts to guide the generator.",
	"Focus on producing complete instrumental music pieces suitable for listening.",
}

// Ready reports whether both keys are non-empty after trimming.
func Ready(llmKey, mediaKey string) bool {
	return models.Credentials{LLMAPIKey: llmKey, MediaAPIKey: mediaKey}.Ready()
}

// Build assembles the request for one generate action. Blank prompts are rejected.
func Build(prompt string) (*models.GenerationRequest, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	return &models.GenerationRequest{
		Prompt:       prompt,
		Description:  AgentDescription,
		Instructions: append([]string(nil), AgentInstructions...),
		OutputFormat: models.FileTypeMP3,
	}, nil
}
