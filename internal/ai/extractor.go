package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/moneymate-th/transaction-ai-service/internal/category"
	"github.com/moneymate-th/transaction-ai-service/internal/dedup"
	"github.com/moneymate-th/transaction-ai-service/internal/models"
	"github.com/moneymate-th/transaction-ai-service/internal/thaidate"
)

// ErrNoProviderConfigured is returned before any network call when the
// provider chain is empty. Callers should surface it as a configuration
// problem, not retry.
var ErrNoProviderConfigured = errors.New("no AI provider configured")

// AllProvidersFailed terminates an extraction after every provider in the
// chain failed; Last carries the final provider's error for diagnostics.
type AllProvidersFailed struct {
	Last error
}

func (e *AllProvidersFailed) Error() string {
	return fmt.Sprintf("all AI providers failed, last error: %v", e.Last)
}

func (e *AllProvidersFailed) Unwrap() error { return e.Last }

const defaultProviderTimeout = 30 * time.Second

// ExtractorConfig tunes the orchestrator.
type ExtractorConfig struct {
	// Name of the catch-all category, "อื่นๆ" when empty.
	FallbackCategory string

	// When true, batch slip drafts missing only their category file into the
	// fallback category and count as complete instead of blocking on review.
	BatchAutoCategorize bool

	// Per-provider call timeout; 30s when zero. A hung provider must not
	// stall a whole import.
	ProviderTimeout time.Duration
}

// Extractor drives the provider chain and turns raw model output into draft
// transactions. It performs no persistence; saving an accepted draft is the
// caller's job.
type Extractor struct {
	providers []Provider
	cfg       ExtractorConfig
	now       func() time.Time
}

// NewExtractor creates an extractor over an ordered provider chain.
func NewExtractor(providers []Provider, cfg ExtractorConfig) *Extractor {
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = defaultProviderTimeout
	}
	if cfg.FallbackCategory == "" {
		cfg.FallbackCategory = category.DefaultFallbackName
	}
	return &Extractor{providers: providers, cfg: cfg, now: time.Now}
}

// Result is the outcome of one successful extraction.
type Result struct {
	Draft models.DraftTransaction
	// Complete means the draft can be saved without human review.
	Complete bool
	// Duplicate means the slip's reference was already recorded; the draft
	// is returned for display but must not be saved.
	Duplicate bool
	// Provider that produced the draft.
	Provider string
}

// SlipImage is one image in a batch import.
type SlipImage struct {
	Data []byte
	MIME string
}

// BatchItem pairs each batch slip with its outcome. One slip failing its
// provider calls never aborts the rest of the batch.
type BatchItem struct {
	Result *Result
	Err    error
}

// rawResult is the canonical provider response schema shared by both
// pipelines. Amounts come back as numbers or as strings with thousands
// separators depending on the model's mood, hence the any type.
type rawResult struct {
	Amount       any    `json:"amount"`
	Type         string `json:"type"`
	CategoryName string `json:"categoryName"`
	Date         string `json:"date"`
	Note         string `json:"note"`
	Ref          string `json:"ref"`
}

// ExtractFromText analyzes free text (typed or voice-transcribed) against
// the user's category list. walletID comes from the caller context; the
// model never invents one.
func (e *Extractor) ExtractFromText(ctx context.Context, text string, categories []models.Category, walletID string) (*Result, error) {
	req := Request{
		SystemPrompt: textSystemPrompt(categories, e.now()),
		Text:         text,
	}

	raw, providerName, err := e.invoke(ctx, req)
	if err != nil {
		return nil, err
	}

	draft := e.mapDraft(raw, walletID)
	draft.CategoryID = category.Resolve(raw.CategoryName, draft.Type, categories, e.cfg.FallbackCategory)

	return &Result{
		Draft:    draft,
		Complete: draft.Amount.IsPositive() && draft.CategoryID != "" && draft.WalletID != "",
		Provider: providerName,
	}, nil
}

// ExtractFromSlip analyzes one bank-slip image. existingNotes holds the
// user's current transaction notes; a slip whose reference already appears
// in one of them is flagged duplicate and must not be saved. Single-slip
// drafts always go to manual review, so Complete stays false here; only the
// batch path may auto-file them.
func (e *Extractor) ExtractFromSlip(ctx context.Context, image []byte, mime string, walletID string, existingNotes []string) (*Result, error) {
	raw, providerName, err := e.invoke(ctx, Request{
		SystemPrompt: slipSystemPrompt(),
		Text:         "อ่านสลิปนี้",
		Image:        image,
		ImageMIME:    mime,
	})
	if err != nil {
		return nil, err
	}

	draft := e.mapDraft(raw, walletID)

	return &Result{
		Draft:     draft,
		Duplicate: dedup.IsDuplicate(draft.ReferenceNumber, existingNotes),
		Provider:  providerName,
	}, nil
}

// ExtractSlipBatch processes slips sequentially in input order. The
// duplicate guard for each slip sees the user's existing notes plus the
// notes of drafts accepted earlier in this same batch, so the same receipt
// supplied twice in one upload is only imported once.
func (e *Extractor) ExtractSlipBatch(ctx context.Context, slips []SlipImage, categories []models.Category, walletID string, existingNotes []string) []BatchItem {
	items := make([]BatchItem, 0, len(slips))
	notes := make([]string, len(existingNotes))
	copy(notes, existingNotes)

	for _, slip := range slips {
		if ctx.Err() != nil {
			items = append(items, BatchItem{Err: ctx.Err()})
			continue
		}

		res, err := e.ExtractFromSlip(ctx, slip.Data, slip.MIME, walletID, notes)
		if err != nil {
			items = append(items, BatchItem{Err: err})
			continue
		}

		if !res.Duplicate && e.cfg.BatchAutoCategorize {
			// Slips carry no category name; file into the fallback bucket
			// instead of blocking a whole batch on review.
			res.Draft.CategoryID = category.Resolve("", res.Draft.Type, categories, e.cfg.FallbackCategory)
			res.Complete = res.Draft.Amount.IsPositive() && res.Draft.CategoryID != "" && res.Draft.WalletID != ""
		}
		if res.Complete && !res.Duplicate {
			notes = append(notes, res.Draft.Note)
		}
		items = append(items, BatchItem{Result: res})
	}
	return items
}

// invoke walks the provider chain in order, one attempt per provider, and
// returns the first parsed response.
func (e *Extractor) invoke(ctx context.Context, req Request) (*rawResult, string, error) {
	if len(e.providers) == 0 {
		return nil, "", ErrNoProviderConfigured
	}

	var lastErr error
	for i, p := range e.providers {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.ProviderTimeout)
		rawJSON, err := p.Extract(callCtx, req)
		cancel()

		if err == nil {
			var res rawResult
			if jerr := json.Unmarshal(rawJSON, &res); jerr != nil {
				err = unparseable(p.Name(), jerr)
			} else {
				return &res, p.Name(), nil
			}
		}

		// A cancelled caller is not a provider failure; stop immediately so
		// no half-formed draft escapes.
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}

		lastErr = err
		if i < len(e.providers)-1 {
			log.Printf("[AI] provider %s failed (%v), trying next", p.Name(), err)
		}
	}

	return nil, "", &AllProvidersFailed{Last: lastErr}
}

// mapDraft converts a raw provider response into a draft transaction:
// flexible amount parsing, type validation, date normalization and note
// synthesis with the slip reference.
func (e *Extractor) mapDraft(res *rawResult, walletID string) models.DraftTransaction {
	draft := models.DraftTransaction{
		Amount:          parseDecimal(res.Amount),
		Note:            strings.TrimSpace(res.Note),
		WalletID:        walletID,
		ReferenceNumber: strings.TrimSpace(res.Ref),
	}

	switch res.Type {
	case models.TypeIncome:
		draft.Type = models.TypeIncome
	default:
		// Slips are overwhelmingly outgoing transfers; unknown types count
		// as expenses too.
		draft.Type = models.TypeExpense
	}

	date, parsed := thaidate.Normalize(res.Date)
	if !parsed && res.Date != "" {
		log.Printf("[AI] unparseable date %q, falling back to today", res.Date)
	}
	draft.Date = date

	if draft.ReferenceNumber != "" {
		if draft.Note != "" {
			draft.Note = fmt.Sprintf("%s (Ref: %s)", draft.Note, draft.ReferenceNumber)
		} else {
			draft.Note = fmt.Sprintf("(Ref: %s)", draft.ReferenceNumber)
		}
	}

	return draft
}

// parseDecimal handles flexible number parsing from mixed JSON types.
// Supports numbers, strings, and strings with thousands separators
// (e.g. "3,965.34").
func parseDecimal(v any) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}

	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val)
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case string:
		if val == "" {
			return decimal.Zero
		}
		cleaned := strings.ReplaceAll(val, ",", "")
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.Zero
		}
		return d
	case json.Number:
		if val == "" {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(string(val))
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}
