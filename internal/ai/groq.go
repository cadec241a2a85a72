package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// GroqProvider calls Groq through its OpenAI-compatible chat completions
// endpoint. Any other OpenAI-compatible service works by overriding the base
// URL.
type GroqProvider struct {
	client *openai.Client
	model  string
}

// NewGroqProvider creates a Groq provider.
func NewGroqProvider(apiKey, baseURL, model string) *GroqProvider {
	if baseURL == "" {
		baseURL = groqBaseURL
	}
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &GroqProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (p *GroqProvider) Name() string { return "groq" }

// Extract performs one chat completion call.
func (p *GroqProvider) Extract(ctx context.Context, req Request) (json.RawMessage, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
	}

	if len(req.Image) > 0 {
		// OpenAI-compatible endpoints take images as data URIs, prefix
		// included.
		dataURI := fmt.Sprintf("data:%s;base64,%s",
			req.ImageMIME, base64.StdEncoding.EncodeToString(req.Image))
		messages = append(messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: req.Text},
				{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: dataURI},
				},
			},
		})
	} else {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.Text,
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: 0.3,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, p.classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, requestFailed(p.Name(), fmt.Errorf("no choices in response"))
	}

	raw, err := extractJSON(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, unparseable(p.Name(), err)
	}
	return raw, nil
}

func (p *GroqProvider) classify(err error) *ProviderError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 || isQuotaMessage(apiErr.Message) {
			return rateLimited(p.Name(), err)
		}
		return requestFailed(p.Name(), err)
	}
	if isQuotaMessage(err.Error()) {
		return rateLimited(p.Name(), err)
	}
	return requestFailed(p.Name(), err)
}
