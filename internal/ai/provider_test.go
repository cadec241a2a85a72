package ai

import (
	"errors"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{
			name:    "plain json",
			content: `{"amount": 50}`,
			want:    `{"amount": 50}`,
		},
		{
			name:    "json with surrounding whitespace",
			content: "\n  {\"amount\": 50}\n",
			want:    `{"amount": 50}`,
		},
		{
			name:    "json fenced with language tag",
			content: "```json\n{\"amount\": 50}\n```",
			want:    "{\"amount\": 50}",
		},
		{
			name:    "json fenced without language tag",
			content: "```\n{\"amount\": 50}\n```",
			want:    "{\"amount\": 50}",
		},
		{
			name:    "fence buried in prose",
			content: "นี่คือผลลัพธ์ครับ:\n```json\n{\"amount\": 50}\n```\nหวังว่าจะช่วยได้",
			want:    "{\"amount\": 50}",
		},
		{
			name:    "not json at all",
			content: "ขอโทษครับ ไม่สามารถอ่านสลิปได้",
			wantErr: true,
		},
		{
			name:    "truncated json",
			content: `{"amount": 50,`,
			wantErr: true,
		},
		{
			name:    "empty",
			content: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("extractJSON(%q) = %s, want error", tt.content, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("extractJSON(%q) error: %v", tt.content, err)
			}
			if string(got) != tt.want {
				t.Errorf("extractJSON(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}

func TestIsQuotaMessage(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"You exceeded your current quota", true},
		{"RESOURCE_EXHAUSTED", true},
		{"Rate limit reached for model llama-3.3-70b-versatile", true},
		{"invalid api key", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isQuotaMessage(tt.msg); got != tt.want {
			t.Errorf("isQuotaMessage(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	inner := errors.New("429 too many requests")
	perr := rateLimited("gemini", inner)

	if !errors.Is(perr, inner) {
		t.Error("ProviderError must unwrap to the underlying error")
	}
	if perr.Kind != KindRateLimited {
		t.Errorf("Kind = %q, want %q", perr.Kind, KindRateLimited)
	}
	if perr.Provider != "gemini" {
		t.Errorf("Provider = %q, want gemini", perr.Provider)
	}

	var target *ProviderError
	if !errors.As(error(perr), &target) {
		t.Error("errors.As must find ProviderError in the chain")
	}
}
