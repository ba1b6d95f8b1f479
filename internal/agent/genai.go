package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"google.golang.org/genai"
)

// GenAIModel adapts the unified genai SDK to llms.Model so the agent loop can
// drive Gemini function calling without langchaingo's googleai wrapper.
type GenAIModel struct {
	client *genai.Client
	model  string
}

var _ llms.Model = (*GenAIModel)(nil)

// NewGenAIModel creates a Gemini API client. baseURL is optional.
func NewGenAIModel(ctx context.Context, apiKey, model, baseURL string) (*GenAIModel, error) {
	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}
	return &GenAIModel{client: client, model: model}, nil
}

// Call implements llms.Model.
func (m *GenAIModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// GenerateContent implements llms.Model.
func (m *GenAIModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}

	contents, system, err := toGenAIContents(messages)
	if err != nil {
		return nil, err
	}
	config := &genai.GenerateContentConfig{SystemInstruction: system}
	if opts.Temperature != 0 {
		temp := float32(opts.Temperature)
		config.Temperature = &temp
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if len(opts.Tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: toFunctionDeclarations(opts.Tools)}}
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("genai generate content: %w", err)
	}
	return fromGenAIResponse(resp)
}

func toGenAIContents(messages []llms.MessageContent) ([]*genai.Content, *genai.Content, error) {
	var contents []*genai.Content
	var system *genai.Content

	for _, mc := range messages {
		parts, err := toGenAIParts(mc.Parts)
		if err != nil {
			return nil, nil, err
		}
		switch mc.Role {
		case llms.ChatMessageTypeSystem:
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, parts...)
		case llms.ChatMessageTypeAI:
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: parts})
		}
	}
	return contents, system, nil
}

func toGenAIParts(parts []llms.ContentPart) ([]*genai.Part, error) {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		switch v := p.(type) {
		case llms.TextContent:
			out = append(out, &genai.Part{Text: v.Text})
		case llms.ToolCall:
			if v.FunctionCall == nil {
				continue
			}
			args := map[string]any{}
			if v.FunctionCall.Arguments != "" {
				if err := json.Unmarshal([]byte(v.FunctionCall.Arguments), &args); err != nil {
					return nil, fmt.Errorf("decode tool call arguments: %w", err)
				}
			}
			out = append(out, &genai.Part{FunctionCall: &genai.FunctionCall{
				ID:   v.ID,
				Name: v.FunctionCall.Name,
				Args: args,
			}})
		case llms.ToolCallResponse:
			out = append(out, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       v.ToolCallID,
				Name:     v.Name,
				Response: map[string]any{"output": v.Content},
			}})
		default:
			return nil, fmt.Errorf("unsupported content part %T", p)
		}
	}
	return out, nil
}

func toFunctionDeclarations(tools []llms.Tool) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		if t.Function == nil {
			continue
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 t.Function.Name,
			Description:          t.Function.Description,
			ParametersJsonSchema: t.Function.Parameters,
		})
	}
	return decls
}

func fromGenAIResponse(resp *genai.GenerateContentResponse) (*llms.ContentResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return &llms.ContentResponse{}, nil
	}
	cand := resp.Candidates[0]
	choice := &llms.ContentChoice{StopReason: string(cand.FinishReason)}

	if cand.Content != nil {
		var text strings.Builder
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" && !part.Thought {
				text.WriteString(part.Text)
			}
			if fc := part.FunctionCall; fc != nil {
				args, err := json.Marshal(fc.Args)
				if err != nil {
					return nil, fmt.Errorf("encode function call arguments: %w", err)
				}
				id := fc.ID
				if id == "" {
					id = uuid.NewString()
				}
				choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
					ID:   id,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      fc.Name,
						Arguments: string(args),
					},
				})
			}
		}
		choice.Content = text.String()
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{choice}}, nil
}
