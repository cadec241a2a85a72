package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/moneymate-th/transaction-ai-service/internal/auth"
	"github.com/moneymate-th/transaction-ai-service/internal/db"
	"github.com/moneymate-th/transaction-ai-service/internal/models"
)

func newTestRouter(t *testing.T) (http.Handler, string) {
	t.Helper()

	os.Setenv("JWT_SECRET", "test-secret")
	if err := auth.Init(); err != nil {
		t.Fatalf("auth init: %v", err)
	}
	token, err := auth.GenerateToken("3f2c9a52-9f7e-4a43-bb6e-64a3e9d1c001", "somchai@example.com", "Somchai")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	h := NewHandler(&models.Config{})
	return h.SetupRoutes(), token
}

func doJSON(t *testing.T, router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateCategoryRequiresAuth(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/categories", "", `{"name":"อาหาร","type":"expense"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCreateCategoryValidation(t *testing.T) {
	router, token := newTestRouter(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing name", `{"name":"","type":"expense"}`, http.StatusBadRequest},
		{"invalid type", `{"name":"อาหาร","type":"transfer"}`, http.StatusBadRequest},
		// valid request, but these tests run without a database
		{"no database", `{"name":"อาหาร","type":"expense"}`, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/categories", token, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestExtractTextNoProviderConfigured(t *testing.T) {
	router, token := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/extract/text", token,
		`{"text":"กินข้าว 50 บาท","walletId":"w1"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var res models.ExtractionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Success {
		t.Error("success must be false")
	}
	if res.ErrorKind != "NoProviderConfigured" {
		t.Errorf("errorKind = %q, want NoProviderConfigured", res.ErrorKind)
	}
	if res.Message == "" {
		t.Error("message must carry the failure text")
	}
	if !strings.Contains(rec.Body.String(), `"message"`) {
		t.Errorf("failure text must serialize under the message key, got %s", rec.Body.String())
	}
}

func TestPresignSlipImagesWithoutStorage(t *testing.T) {
	txs := []db.Transaction{
		{SlipImageURL: "slips/u1/2026/02/20260218_abc.jpg"},
		{SlipImageURL: ""},
	}

	presignSlipImages(context.Background(), txs)

	if txs[0].SlipImageURL != "slips/u1/2026/02/20260218_abc.jpg" {
		t.Errorf("object path must pass through untouched without storage, got %q", txs[0].SlipImageURL)
	}
	if txs[1].SlipImageURL != "" {
		t.Errorf("empty path must stay empty, got %q", txs[1].SlipImageURL)
	}
}
