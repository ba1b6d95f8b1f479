package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/snappy-loop/musicgen/internal/models"
	"github.com/snappy-loop/musicgen/internal/modelslab"
	"github.com/tmc/langchaingo/llms"
)

// MediaToolName is the function name exposed to the model.
const MediaToolName = "generate_media"

// MediaGenerator submits a text-to-media job.
type MediaGenerator interface {
	GenerateMedia(ctx context.Context, prompt string) (*modelslab.Media, error)
}

// MediaTool exposes a MediaGenerator as the generate_media function.
type MediaTool struct {
	gen MediaGenerator
}

// NewMediaTool binds gen as the agent's generate_media tool.
func NewMediaTool(gen MediaGenerator) *MediaTool {
	return &MediaTool{gen: gen}
}

func (t *MediaTool) Name() string { return MediaToolName }

func (t *MediaTool) Definition() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        MediaToolName,
			Description: "Use this function to generate a video, audio or gif given a prompt.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"prompt": map[string]any{
						"type":        "string",
						"description": "Detailed prompt describing the media to generate.",
					},
				},
				"required": []string{"prompt"},
			},
		},
	}
}

// Call parses {"prompt": "..."} and runs the media job.
func (t *MediaTool) Call(ctx context.Context, arguments string) (*ToolResult, error) {
	var args struct {
		Prompt string `json:"prompt"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(args.Prompt) == "" {
		return nil, errors.New("prompt is required")
	}

	media, err := t.gen.GenerateMedia(ctx, args.Prompt)
	if err != nil {
		return nil, err
	}

	res := &ToolResult{}
	for _, u := range media.URLs {
		res.Audio = append(res.Audio, models.AudioArtifact{ID: media.ID, URL: u})
	}
	if media.Ready {
		res.Content = "Media has been generated successfully."
	} else {
		res.Content = fmt.Sprintf("Media has been generated successfully and will be ready in %d seconds.", int(media.ETA.Seconds()))
	}
	return res, nil
}
