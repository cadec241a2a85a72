package models

import (
	"github.com/shopspring/decimal"
)

// Transaction types
const (
	TypeExpense = "expense"
	TypeIncome  = "income"
)

// DraftTransaction is an AI-proposed transaction awaiting confirmation or
// auto-save. It has no identity of its own; persistence happens in the API
// layer after review.
type DraftTransaction struct {
	Amount decimal.Decimal `json:"amount"`
	Type   string          `json:"type"` // "expense" or "income"
	Date   string          `json:"date"` // YYYY-MM-DD, always Common Era
	Note   string          `json:"note"`

	// Resolved against the category list supplied for this call; empty when
	// no category matched.
	CategoryID string `json:"categoryId"`

	// Supplied by the caller context, never produced by the AI.
	WalletID string `json:"walletId"`

	// Slip pipeline only: transaction reference used for duplicate detection.
	ReferenceNumber string `json:"referenceNumber,omitempty"`
}

// Category is a read-only lookup entry owned by the caller.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"` // "expense" or "income"
}

// Wallet identifies where a transaction is recorded.
type Wallet struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ExtractionResult is the caller-facing output of one extraction call.
type ExtractionResult struct {
	Success bool              `json:"success"`
	Draft   *DraftTransaction `json:"draft,omitempty"`
	// Complete means the draft can be persisted without human review.
	Complete bool `json:"complete"`
	// Duplicate means a slip with the same reference was already imported.
	Duplicate bool   `json:"duplicate,omitempty"`
	Provider  string `json:"provider,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Config represents the service configuration
type Config struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	AI AIConfig `yaml:"ai"`

	Extraction ExtractionConfig `yaml:"extraction"`
}

// AIConfig holds the ordered provider chain. Providers are tried in list
// order; the first success wins.
type AIConfig struct {
	Providers []ProviderConfig `yaml:"providers"`

	// Per-provider call timeout, e.g. "30s".
	Timeout string `yaml:"timeout"`
}

// ProviderConfig configures one AI provider.
type ProviderConfig struct {
	Name    string `yaml:"name"` // "gemini" or "groq"
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url,omitempty"` // OpenAI-compatible endpoints only
}

// ExtractionConfig tunes draft handling policy.
type ExtractionConfig struct {
	// Name of the catch-all category drafts fall back to, "อื่นๆ" by default.
	FallbackCategory string `yaml:"fallback_category"`

	// When true, a batch slip draft missing only its category files into the
	// fallback category and auto-saves instead of blocking on review. Single
	// slips and text drafts always go to review when unresolved.
	BatchAutoCategorize *bool `yaml:"batch_auto_categorize"`
}

// FallbackCategoryName returns the configured catch-all category name.
func (c *Config) FallbackCategoryName() string {
	if c.Extraction.FallbackCategory != "" {
		return c.Extraction.FallbackCategory
	}
	return "อื่นๆ"
}

// BatchAutoCategorize reports the batch policy, defaulting to true.
func (c *Config) BatchAutoCategorize() bool {
	if c.Extraction.BatchAutoCategorize == nil {
		return true
	}
	return *c.Extraction.BatchAutoCategorize
}
