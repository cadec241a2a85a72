package ai

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/moneymate-th/transaction-ai-service/internal/models"
)

type fakeProvider struct {
	name  string
	resp  string
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Extract(ctx context.Context, req Request) (json.RawMessage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.resp), nil
}

var testCategories = []models.Category{
	{ID: "1", Name: "อาหาร", Type: "expense"},
	{ID: "2", Name: "เงินเดือน", Type: "income"},
	{ID: "3", Name: "อื่นๆ", Type: "expense"},
}

func TestExtractFromTextNoProviders(t *testing.T) {
	e := NewExtractor(nil, ExtractorConfig{})
	_, err := e.ExtractFromText(context.Background(), "กินข้าว 50", testCategories, "w1")
	if !errors.Is(err, ErrNoProviderConfigured) {
		t.Fatalf("expected ErrNoProviderConfigured, got %v", err)
	}
}

func TestExtractFromTextFallbackToSecondary(t *testing.T) {
	primary := &fakeProvider{name: "gemini", err: rateLimited("gemini", errors.New("429"))}
	secondary := &fakeProvider{
		name: "groq",
		resp: `{"amount":120,"type":"expense","categoryName":"อาหาร","date":"2025-06-01","note":"กินข้าว"}`,
	}
	e := NewExtractor([]Provider{primary, secondary}, ExtractorConfig{})

	res, err := e.ExtractFromText(context.Background(), "กินข้าว 120 บาท", testCategories, "w1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if primary.calls != 1 || secondary.calls != 1 {
		t.Errorf("expected one call each, got primary=%d secondary=%d", primary.calls, secondary.calls)
	}
	if res.Provider != "groq" {
		t.Errorf("provider = %q, want groq", res.Provider)
	}
	if !res.Complete {
		t.Error("expected complete draft")
	}
	if res.Draft.CategoryID != "1" {
		t.Errorf("categoryId = %q, want 1", res.Draft.CategoryID)
	}
	if res.Draft.Date != "2025-06-01" {
		t.Errorf("date = %q, want 2025-06-01", res.Draft.Date)
	}
	if !res.Draft.Amount.Equal(decimal.NewFromInt(120)) {
		t.Errorf("amount = %s, want 120", res.Draft.Amount)
	}
}

func TestExtractFromTextAllProvidersFail(t *testing.T) {
	lastErr := requestFailed("groq", errors.New("boom"))
	providers := []Provider{
		&fakeProvider{name: "gemini", err: rateLimited("gemini", errors.New("quota"))},
		&fakeProvider{name: "groq", err: lastErr},
	}
	e := NewExtractor(providers, ExtractorConfig{})

	_, err := e.ExtractFromText(context.Background(), "x", testCategories, "w1")
	var apf *AllProvidersFailed
	if !errors.As(err, &apf) {
		t.Fatalf("expected AllProvidersFailed, got %v", err)
	}
	var perr *ProviderError
	if !errors.As(apf.Last, &perr) || perr.Kind != KindRequestFailed {
		t.Errorf("expected last error to carry the final provider failure, got %v", apf.Last)
	}
}

func TestExtractFromTextUnparseableTriggersFallback(t *testing.T) {
	providers := []Provider{
		&fakeProvider{name: "gemini", resp: `{"amount": 50,`},
		&fakeProvider{name: "groq", resp: `{"amount":50,"type":"expense","categoryName":"อาหาร","date":"2025-06-01","note":"x"}`},
	}
	e := NewExtractor(providers, ExtractorConfig{})

	res, err := e.ExtractFromText(context.Background(), "x", testCategories, "w1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Provider != "groq" {
		t.Errorf("provider = %q, want groq", res.Provider)
	}
}

func TestExtractFromTextUnresolvedCategoryIncomplete(t *testing.T) {
	p := &fakeProvider{
		name: "gemini",
		resp: `{"amount":90,"type":"income","categoryName":"โบนัสพิเศษ","date":"2025-06-01","note":"x"}`,
	}
	// No income fallback category in the list.
	cats := []models.Category{{ID: "1", Name: "อาหาร", Type: "expense"}}
	e := NewExtractor([]Provider{p}, ExtractorConfig{})

	res, err := e.ExtractFromText(context.Background(), "x", cats, "w1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Draft.CategoryID != "" {
		t.Errorf("categoryId = %q, want empty", res.Draft.CategoryID)
	}
	if res.Complete {
		t.Error("draft with unresolved category must not be complete")
	}
}

func TestExtractFromTextMissingWalletIncomplete(t *testing.T) {
	p := &fakeProvider{
		name: "gemini",
		resp: `{"amount":120,"type":"expense","categoryName":"อาหาร","date":"2025-06-01","note":"x"}`,
	}
	e := NewExtractor([]Provider{p}, ExtractorConfig{})

	res, err := e.ExtractFromText(context.Background(), "x", testCategories, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Complete {
		t.Error("draft without a wallet must not be complete")
	}
}

func TestExtractFromTextAmountWithThousandsSeparator(t *testing.T) {
	p := &fakeProvider{
		name: "gemini",
		resp: `{"amount":"3,965.34","type":"expense","categoryName":"อาหาร","date":"2025-06-01","note":"x"}`,
	}
	e := NewExtractor([]Provider{p}, ExtractorConfig{})

	res, err := e.ExtractFromText(context.Background(), "x", testCategories, "w1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := decimal.RequireFromString("3965.34")
	if !res.Draft.Amount.Equal(want) {
		t.Errorf("amount = %s, want %s", res.Draft.Amount, want)
	}
}

func TestExtractFromSlip(t *testing.T) {
	p := &fakeProvider{
		name: "gemini",
		resp: `{"amount":500,"type":"expense","date":"18 ก.พ. 2569","note":"โอนให้แม่","ref":"REF123"}`,
	}
	e := NewExtractor([]Provider{p}, ExtractorConfig{})

	res, err := e.ExtractFromSlip(context.Background(), []byte{0xff}, "image/jpeg", "w1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Draft.Date != "2026-02-18" {
		t.Errorf("date = %q, want 2026-02-18 (Buddhist-era corrected)", res.Draft.Date)
	}
	if res.Draft.Note != "โอนให้แม่ (Ref: REF123)" {
		t.Errorf("note = %q, want reference appended", res.Draft.Note)
	}
	if res.Complete {
		t.Error("single slip drafts always go to manual review")
	}
	if res.Duplicate {
		t.Error("fresh reference must not be duplicate")
	}
}

func TestExtractFromSlipDuplicate(t *testing.T) {
	p := &fakeProvider{
		name: "gemini",
		resp: `{"amount":500,"type":"expense","date":"2026-02-18","note":"โอนให้แม่","ref":"REF123"}`,
	}
	e := NewExtractor([]Provider{p}, ExtractorConfig{})

	existing := []string{"โอนให้แม่ (Ref: REF123)"}
	res, err := e.ExtractFromSlip(context.Background(), []byte{0xff}, "image/jpeg", "w1", existing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Duplicate {
		t.Error("expected duplicate flag for already-imported reference")
	}
}

func TestExtractFromSlipDefaultsToExpense(t *testing.T) {
	p := &fakeProvider{
		name: "gemini",
		resp: `{"amount":500,"date":"2026-02-18","note":"โอน","ref":""}`,
	}
	e := NewExtractor([]Provider{p}, ExtractorConfig{})

	res, err := e.ExtractFromSlip(context.Background(), []byte{0xff}, "image/jpeg", "w1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Draft.Type != models.TypeExpense {
		t.Errorf("type = %q, want expense default", res.Draft.Type)
	}
}

// responses is a provider whose answer changes per call, for batch tests.
type sequenceProvider struct {
	name  string
	resps []string
	errs  []error
	calls int
}

func (s *sequenceProvider) Name() string { return s.name }

func (s *sequenceProvider) Extract(ctx context.Context, req Request) (json.RawMessage, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return json.RawMessage(s.resps[i]), nil
}

func TestExtractSlipBatchInBatchDuplicate(t *testing.T) {
	slipJSON := `{"amount":500,"type":"expense","date":"2026-02-18","note":"โอนให้แม่","ref":"REF123"}`
	p := &sequenceProvider{name: "gemini", resps: []string{slipJSON, slipJSON}}
	e := NewExtractor([]Provider{p}, ExtractorConfig{BatchAutoCategorize: true})

	slips := []SlipImage{
		{Data: []byte{1}, MIME: "image/jpeg"},
		{Data: []byte{2}, MIME: "image/jpeg"},
	}
	items := e.ExtractSlipBatch(context.Background(), slips, testCategories, "w1", nil)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	first, second := items[0], items[1]
	if first.Err != nil || second.Err != nil {
		t.Fatalf("unexpected errors: %v, %v", first.Err, second.Err)
	}
	if !first.Result.Complete || first.Result.Duplicate {
		t.Errorf("first slip should auto-file: complete=%v duplicate=%v", first.Result.Complete, first.Result.Duplicate)
	}
	if first.Result.Draft.CategoryID != "3" {
		t.Errorf("first slip categoryId = %q, want fallback 3", first.Result.Draft.CategoryID)
	}
	if !second.Result.Duplicate {
		t.Error("second identical slip in the same batch must be flagged duplicate")
	}
}

func TestExtractSlipBatchFailureIsolation(t *testing.T) {
	ok := `{"amount":100,"type":"expense","date":"2026-02-18","note":"a","ref":"R1"}`
	p := &sequenceProvider{
		name:  "gemini",
		resps: []string{"", ok},
		errs:  []error{requestFailed("gemini", errors.New("boom")), nil},
	}
	e := NewExtractor([]Provider{p}, ExtractorConfig{BatchAutoCategorize: true})

	slips := []SlipImage{
		{Data: []byte{1}, MIME: "image/jpeg"},
		{Data: []byte{2}, MIME: "image/jpeg"},
	}
	items := e.ExtractSlipBatch(context.Background(), slips, testCategories, "w1", nil)
	if items[0].Err == nil {
		t.Error("first slip should carry its provider failure")
	}
	if items[1].Err != nil || items[1].Result == nil {
		t.Errorf("second slip must still be processed, got err=%v", items[1].Err)
	}
}

func TestExtractSlipBatchReviewPolicy(t *testing.T) {
	slipJSON := `{"amount":500,"type":"expense","date":"2026-02-18","note":"โอน","ref":"R9"}`
	p := &sequenceProvider{name: "gemini", resps: []string{slipJSON}}
	e := NewExtractor([]Provider{p}, ExtractorConfig{BatchAutoCategorize: false})

	items := e.ExtractSlipBatch(context.Background(),
		[]SlipImage{{Data: []byte{1}, MIME: "image/jpeg"}}, testCategories, "w1", nil)
	if items[0].Result.Complete {
		t.Error("with auto-categorize off, batch slips must go to review")
	}
	if items[0].Result.Draft.CategoryID != "" {
		t.Errorf("categoryId = %q, want empty when policy is off", items[0].Result.Draft.CategoryID)
	}
}

func TestExtractCancelledContext(t *testing.T) {
	p := &fakeProvider{name: "gemini", err: requestFailed("gemini", context.Canceled)}
	e := NewExtractor([]Provider{p, &fakeProvider{name: "groq"}}, ExtractorConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.ExtractFromText(ctx, "x", testCategories, "w1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
