package clients

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/mikeboe/research-agent/pkg/research"
)

// ModelType is an enum for the available Google AI models.
type ModelType string

const (
	// DefaultModel is the default model to use if none is specified
	DefaultModel ModelType = "gemini-3-flash-preview"
	ProModel     ModelType = "gemini-3-pro-preview"
)

func GoogleAi(ctx context.Context, apiKey string, model ModelType) (*googleai.GoogleAI, error) {
	var modelName string
	switch model {
	case DefaultModel:
		modelName = string(DefaultModel)
	case ProModel:
		modelName = string(ProModel)
	default:
		return nil, fmt.Errorf("invalid model type: %s", model)
	}

	// See https://ai.google.dev/gemini-api/docs/models/gemini for possible models
	return googleai.New(ctx, googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(modelName))
}

// GoogleLLM adapts a googleai client to the research.LLM capability.
type GoogleLLM struct {
	client *googleai.GoogleAI
}

func NewGoogleLLM(client *googleai.GoogleAI) *GoogleLLM {
	return &GoogleLLM{client: client}
}

func (g *GoogleLLM) Generate(ctx context.Context, messages []research.Message, model string) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		var role llms.ChatMessageType
		switch m.Role {
		case "system":
			role = llms.ChatMessageTypeSystem
		case "assistant":
			role = llms.ChatMessageTypeAI
		default:
			role = llms.ChatMessageTypeHuman
		}
		content = append(content, llms.TextParts(role, m.Content))
	}

	opts := []llms.CallOption{}
	if model != "" {
		opts = append(opts, llms.WithModel(model))
	}

	resp, err := g.client.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", &research.ProviderError{Op: "generate", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &research.ProviderError{Op: "generate", Err: fmt.Errorf("no response choices returned")}
	}

	return resp.Choices[0].Content, nil
}
