package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Request carries one extraction payload to a provider: free text for typed
// or voice-transcribed input, or raw image bytes for bank slips. Exactly one
// of Text and Image is expected to be set.
type Request struct {
	SystemPrompt string
	Text         string
	Image        []byte
	ImageMIME    string
}

// Provider is one AI inference service. Extract performs exactly one
// outbound call and returns the model output as strict JSON; retry and
// fallback policy live in the Extractor, never here.
type Provider interface {
	Name() string
	Extract(ctx context.Context, req Request) (json.RawMessage, error)
}

// Provider error kinds. Rate limits, request failures and unparseable
// responses are all worth a fallback attempt on the next provider; the kind
// is surfaced so callers can tell retryable-later from config problems.
const (
	KindRateLimited   = "ProviderRateLimited"
	KindRequestFailed = "ProviderRequestFailed"
	KindUnparseable   = "ProviderResponseUnparseable"
)

// ProviderError classifies a failed provider invocation.
type ProviderError struct {
	Provider string
	Kind     string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func rateLimited(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindRateLimited, Err: err}
}

func requestFailed(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindRequestFailed, Err: err}
}

func unparseable(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindUnparseable, Err: err}
}

// isQuotaMessage matches the quota-exhaustion signatures the providers put in
// error bodies when the HTTP status alone does not say 429.
func isQuotaMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "quota") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(lower, "rate limit")
}

var fencedJSONRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// extractJSON returns the strict-JSON portion of a model response. Models
// occasionally ignore the JSON-only instruction and wrap the object in
// markdown fences; those are recoverable, anything else is not.
func extractJSON(content string) (json.RawMessage, error) {
	cleaned := strings.TrimSpace(content)
	if json.Valid([]byte(cleaned)) {
		return json.RawMessage(cleaned), nil
	}

	if m := fencedJSONRe.FindStringSubmatch(cleaned); m != nil {
		inner := strings.TrimSpace(m[1])
		if json.Valid([]byte(inner)) {
			return json.RawMessage(inner), nil
		}
	}

	return nil, fmt.Errorf("response is not valid JSON: %.200s", cleaned)
}
