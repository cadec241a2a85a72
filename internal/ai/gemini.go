package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiProvider calls the Google Gemini API. It supports both text input
// (with a system instruction) and inline slip images; in both modes the
// response format is constrained to JSON.
type GeminiProvider struct {
	apiKey string
	model  string
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	if model == "" {
		model = "gemini-2.5-flash-lite"
	}
	return &GeminiProvider{apiKey: apiKey, model: model}
}

func (p *GeminiProvider) Name() string { return "gemini" }

// Extract performs one generateContent call.
func (p *GeminiProvider) Extract(ctx context.Context, req Request) (json.RawMessage, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return nil, requestFailed(p.Name(), fmt.Errorf("create client: %w", err))
	}
	defer client.Close()

	model := client.GenerativeModel(p.model)
	model.ResponseMIMEType = "application/json"
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemPrompt)},
		}
	}

	var parts []genai.Part
	if req.Text != "" {
		parts = append(parts, genai.Text(req.Text))
	}
	if len(req.Image) > 0 {
		// Slips need deterministic reads; the text pipeline keeps the model
		// default.
		model.SetTemperature(0.1)
		// Gemini wants the raw bytes inline, no data: URI wrapping.
		parts = append(parts, genai.Blob{MIMEType: req.ImageMIME, Data: req.Image})
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, p.classify(err)
	}

	text, err := geminiResponseText(resp)
	if err != nil {
		return nil, requestFailed(p.Name(), err)
	}

	raw, err := extractJSON(text)
	if err != nil {
		return nil, unparseable(p.Name(), err)
	}
	return raw, nil
}

func (p *GeminiProvider) classify(err error) *ProviderError {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == 429 || isQuotaMessage(gerr.Message) || isQuotaMessage(string(gerr.Body)) {
			return rateLimited(p.Name(), err)
		}
		return requestFailed(p.Name(), err)
	}
	if isQuotaMessage(err.Error()) {
		return rateLimited(p.Name(), err)
	}
	return requestFailed(p.Name(), err)
}

func geminiResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no candidates in response")
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			return string(text), nil
		}
	}
	return "", fmt.Errorf("no text part in response")
}
