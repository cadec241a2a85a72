package category

import (
	"testing"

	"github.com/moneymate-th/transaction-ai-service/internal/models"
)

func TestResolve(t *testing.T) {
	cats := []models.Category{
		{ID: "1", Name: "อาหาร", Type: "expense"},
		{ID: "2", Name: "อาหาร", Type: "income"},
		{ID: "3", Name: "เดินทาง", Type: "expense"},
		{ID: "4", Name: "อื่นๆ", Type: "expense"},
		{ID: "5", Name: "อื่นๆ", Type: "income"},
		{ID: "6", Name: "Shopping", Type: "expense"},
	}

	tests := []struct {
		name   string
		label  string
		txType string
		want   string
	}{
		{"exact match same type", "อาหาร", "expense", "1"},
		{"exact match never crosses type", "อาหาร", "income", "2"},
		{"exact match case insensitive", "shopping", "expense", "6"},
		{"label contains category name", "ซื้อของกินหมวดอาหาร", "expense", "1"},
		{"partial label never reverse-matches", "เดิน", "expense", "4"},
		{"unknown label falls back to other", "ค่าปริศนา", "expense", "4"},
		{"unknown income label falls back to income other", "เงินปริศนา", "income", "5"},
		{"whitespace label falls back", "   ", "expense", "4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.label, tt.txType, cats, "")
			if got != tt.want {
				t.Errorf("Resolve(%q, %q) = %q, want %q", tt.label, tt.txType, got, tt.want)
			}
		})
	}
}

func TestResolveNoFallbackConfigured(t *testing.T) {
	cats := []models.Category{
		{ID: "1", Name: "อาหาร", Type: "expense"},
	}
	if got := Resolve("ไม่รู้จัก", "expense", cats, ""); got != "" {
		t.Errorf("expected empty id when no fallback category exists, got %q", got)
	}
}

func TestResolveCustomFallbackName(t *testing.T) {
	cats := []models.Category{
		{ID: "9", Name: "misc", Type: "expense"},
	}
	if got := Resolve("mystery", "expense", cats, "misc"); got != "9" {
		t.Errorf("expected custom fallback to resolve to 9, got %q", got)
	}
}

func TestResolveDeterministicTieBreak(t *testing.T) {
	cats := []models.Category{
		{ID: "a", Name: "ค่ารถ", Type: "expense"},
		{ID: "b", Name: "ค่ารถ", Type: "expense"},
	}
	for i := 0; i < 5; i++ {
		if got := Resolve("ค่ารถ", "expense", cats, ""); got != "a" {
			t.Fatalf("tie must resolve to first candidate in list order, got %q", got)
		}
	}
}
