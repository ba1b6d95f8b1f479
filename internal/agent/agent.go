package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/musicgen/internal/models"
	"github.com/tmc/langchaingo/llms"
)

// ErrEmptyResponse is returned when the model answers with no choices.
var ErrEmptyResponse = errors.New("model returned no choices")

// Tool is a capability the model may invoke during a run.
type Tool interface {
	Name() string
	Definition() llms.Tool
	Call(ctx context.Context, arguments string) (*ToolResult, error)
}

// ToolResult is what a tool hands back to the model, plus any audio it produced.
type ToolResult struct {
	Content string
	Audio   []models.AudioArtifact
}

// Agent drives a tool-calling conversation with a hosted model.
type Agent struct {
	name      string
	model     llms.Model
	tools     map[string]Tool
	defs      []llms.Tool
	maxRounds int
}

// New creates an agent bound to the given tools. maxRounds caps how many times
// tool calls are executed before the run is ended.
func New(name string, model llms.Model, maxRounds int, tools ...Tool) *Agent {
	if maxRounds < 1 {
		maxRounds = 1
	}
	a := &Agent{
		name:      name,
		model:     model,
		tools:     make(map[string]Tool, len(tools)),
		maxRounds: maxRounds,
	}
	for _, t := range tools {
		a.tools[t.Name()] = t
		a.defs = append(a.defs, t.Definition())
	}
	return a
}

// Run sends the system instruction and prompt, executes requested tool calls, and
// returns the final model text with every audio artifact in the order produced.
func (a *Agent) Run(ctx context.Context, req *models.GenerationRequest) (*models.RunOutput, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.SystemInstruction()),
		llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt),
	}

	out := &models.RunOutput{}
	var lastToolErr error

	for round := 0; ; round++ {
		resp, err := a.model.GenerateContent(ctx, messages, llms.WithTools(a.defs))
		if err != nil {
			log.Debug().Err(err).Str("agent", a.name).Int("round", round).Msg("Model call failed")
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, ErrEmptyResponse
		}
		choice := resp.Choices[0]
		out.Content = choice.Content

		if len(choice.ToolCalls) == 0 {
			break
		}
		if round >= a.maxRounds {
			log.Warn().
				Str("agent", a.name).
				Int("rounds", round).
				Msg("Tool round limit reached, ending run")
			break
		}

		assistant := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		if choice.Content != "" {
			assistant.Parts = append(assistant.Parts, llms.TextContent{Text: choice.Content})
		}
		for _, tc := range choice.ToolCalls {
			assistant.Parts = append(assistant.Parts, tc)
		}
		messages = append(messages, assistant)

		for _, tc := range choice.ToolCalls {
			content, audio, err := a.callTool(ctx, tc)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				lastToolErr = err
				content = "error: " + err.Error()
			}
			out.Audio = append(out.Audio, audio...)
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: tc.ID,
					Name:       toolName(tc),
					Content:    content,
				}},
			})
		}
	}

	if len(out.Audio) == 0 && lastToolErr != nil {
		return nil, lastToolErr
	}

	log.Info().
		Str("agent", a.name).
		Int("audio_count", len(out.Audio)).
		Msg("Agent run complete")

	return out, nil
}

func (a *Agent) callTool(ctx context.Context, tc llms.ToolCall) (string, []models.AudioArtifact, error) {
	name := toolName(tc)
	tool, ok := a.tools[name]
	if !ok {
		return "", nil, fmt.Errorf("unknown tool %q", name)
	}

	args := ""
	if tc.FunctionCall != nil {
		args = tc.FunctionCall.Arguments
	}

	log.Debug().Str("agent", a.name).Str("tool", name).Msg("Calling tool")

	res, err := tool.Call(ctx, args)
	if err != nil {
		log.Debug().Err(err).Str("agent", a.name).Str("tool", name).Msg("Tool call failed")
		return "", nil, err
	}
	return res.Content, res.Audio, nil
}

func toolName(tc llms.ToolCall) string {
	if tc.FunctionCall == nil {
		return ""
	}
	return tc.FunctionCall.Name
}
