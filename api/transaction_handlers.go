package api

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/minio/minio-go/v7"

	"github.com/moneymate-th/transaction-ai-service/internal/auth"
	"github.com/moneymate-th/transaction-ai-service/internal/db"
	"github.com/moneymate-th/transaction-ai-service/internal/models"
	"github.com/moneymate-th/transaction-ai-service/internal/storage"
)

// GetTransactions - GET /api/transactions
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	claims, err := auth.GetClaimsFromContext(r.Context())
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	// Parse pagination params
	page := 1
	limit := 50
	if p := r.URL.Query().Get("page"); p != "" {
		if val, err := strconv.Atoi(p); err == nil && val > 0 {
			page = val
		}
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 && val <= 100 {
			limit = val
		}
	}

	offset := (page - 1) * limit

	txs, total, err := db.GetTransactionsPaginated(r.Context(), claims.UserID, limit, offset)
	if err != nil {
		log.Printf("GetTransactions error for user %s: %v", claims.UserID, err)
		h.sendError(w, http.StatusInternalServerError, "failed to get transactions")
		return
	}

	if txs == nil {
		txs = []db.Transaction{}
	}

	totalPages := (total + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}

	presignSlipImages(r.Context(), txs)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"transactions": txs,
		"total":        total,
		"page":         page,
		"limit":        limit,
		"total_pages":  totalPages,
	})
}

// GetTransaction - GET /api/transactions/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	claims, err := auth.GetClaimsFromContext(r.Context())
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	vars := mux.Vars(r)
	tx, err := db.GetTransactionByID(r.Context(), claims.UserID, vars["id"])
	if err != nil {
		h.sendError(w, http.StatusNotFound, "transaction not found")
		return
	}

	// Presigned URL so the client can render the slip without the proxy
	if tx.SlipImageURL != "" && storage.Client != nil {
		if url, err := storage.GetPresignedURL(r.Context(), tx.SlipImageURL); err == nil {
			tx.SlipImageURL = url
		}
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"transaction": tx,
	})
}

// presignSlipImages swaps stored object paths for presigned GET URLs in
// place. Without storage the paths pass through untouched.
func presignSlipImages(ctx context.Context, txs []db.Transaction) {
	if storage.Client == nil {
		return
	}
	for i := range txs {
		if txs[i].SlipImageURL == "" {
			continue
		}
		if url, err := storage.GetPresignedURL(ctx, txs[i].SlipImageURL); err == nil {
			txs[i].SlipImageURL = url
		}
	}
}

// CreateTransactionRequest is a reviewed draft being saved.
type CreateTransactionRequest struct {
	WalletID        string          `json:"walletId"`
	CategoryID      string          `json:"categoryId"`
	Type            string          `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	Date            string          `json:"date"`
	Note            string          `json:"note"`
	ReferenceNumber string          `json:"referenceNumber"`
	SlipImageURL    string          `json:"slipImageUrl"`
}

// CreateTransaction - POST /api/transactions
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()

	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Type != models.TypeExpense && req.Type != models.TypeIncome {
		h.sendError(w, http.StatusBadRequest, "type must be expense or income")
		return
	}
	if !req.Amount.IsPositive() {
		h.sendError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	if req.WalletID == "" {
		h.sendError(w, http.StatusBadRequest, "walletId is required")
		return
	}
	if req.Date == "" {
		req.Date = time.Now().Format("2006-01-02")
	}

	owned, err := db.WalletBelongsToUser(ctx, claims.UserID, req.WalletID)
	if err != nil || !owned {
		h.sendError(w, http.StatusBadRequest, "wallet not found")
		return
	}

	draft := models.DraftTransaction{
		Amount:          req.Amount,
		Type:            req.Type,
		Date:            req.Date,
		Note:            req.Note,
		CategoryID:      req.CategoryID,
		WalletID:        req.WalletID,
		ReferenceNumber: req.ReferenceNumber,
	}

	tx, err := h.saveDraft(ctx, claims.UserID, &draft, req.SlipImageURL)
	if err != nil {
		log.Printf("CreateTransaction error for user %s: %v", claims.UserID, err)
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":     true,
		"transaction": tx,
	})
}

// UpdateTransaction - PUT /api/transactions/{id}
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	claims, err := auth.GetClaimsFromContext(r.Context())
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	vars := mux.Vars(r)

	var updates map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Only allow certain fields to be updated
	allowed := map[string]bool{
		"wallet_id":   true,
		"category_id": true,
		"type":        true,
		"amount":      true,
		"date":        true,
		"note":        true,
	}
	filtered := make(map[string]interface{})
	for k, v := range updates {
		if allowed[k] {
			filtered[k] = v
		}
	}

	if len(filtered) == 0 {
		h.sendError(w, http.StatusBadRequest, "no valid fields to update")
		return
	}

	if t, ok := filtered["type"].(string); ok && t != models.TypeExpense && t != models.TypeIncome {
		h.sendError(w, http.StatusBadRequest, "type must be expense or income")
		return
	}

	if err := db.UpdateTransaction(r.Context(), claims.UserID, vars["id"], filtered); err != nil {
		log.Printf("UpdateTransaction error for user %s: %v", claims.UserID, err)
		h.sendError(w, http.StatusInternalServerError, "failed to update transaction")
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "transaction updated",
	})
}

// DeleteTransaction - DELETE /api/transactions/{id}
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()

	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	vars := mux.Vars(r)

	// Delete the slip image too, if one was stored (ignore errors)
	if storage.Client != nil {
		if tx, err := db.GetTransactionByID(ctx, claims.UserID, vars["id"]); err == nil && tx.SlipImageURL != "" {
			_ = storage.DeleteImage(ctx, tx.SlipImageURL)
		}
	}

	if err := db.DeleteTransaction(ctx, claims.UserID, vars["id"]); err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to delete transaction")
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "transaction deleted",
	})
}

// GetTransactionImage - GET /api/transactions/{id}/image - Proxy MinIO image
func (h *Handler) GetTransactionImage(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.GetClaimsFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if storage.Client == nil {
		http.Error(w, "storage not available", http.StatusServiceUnavailable)
		return
	}
	if db.Pool == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	vars := mux.Vars(r)
	tx, err := db.GetTransactionByID(r.Context(), claims.UserID, vars["id"])
	if err != nil || tx.SlipImageURL == "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	// Remove bucket prefix to get object name
	objectName := tx.SlipImageURL
	prefix := storage.BucketName + "/"
	if strings.HasPrefix(objectName, prefix) {
		objectName = objectName[len(prefix):]
	}

	obj, err := storage.Client.GetObject(r.Context(), storage.BucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		log.Printf("GetTransactionImage: MinIO error: %v", err)
		http.Error(w, "image not available", http.StatusInternalServerError)
		return
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		log.Printf("GetTransactionImage: Stat error: %v", err)
		http.Error(w, "image not available", http.StatusInternalServerError)
		return
	}

	contentType := info.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = "image/jpeg"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	io.Copy(w, obj)
}

// GetCategories - GET /api/categories
func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	claims, err := auth.GetClaimsFromContext(r.Context())
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	cats, err := db.GetCategories(r.Context(), claims.UserID)
	if err != nil {
		log.Printf("GetCategories error for user %s: %v", claims.UserID, err)
		h.sendError(w, http.StatusInternalServerError, "failed to get categories")
		return
	}
	if cats == nil {
		cats = []models.Category{}
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"categories": cats,
	})
}

// CreateCategoryRequest is a new category entry.
type CreateCategoryRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// CreateCategory - POST /api/categories
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	claims, err := auth.GetClaimsFromContext(r.Context())
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		h.sendError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Type != models.TypeExpense && req.Type != models.TypeIncome {
		h.sendError(w, http.StatusBadRequest, "type must be expense or income")
		return
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	id, err := db.CreateCategory(r.Context(), claims.UserID, req.Name, req.Type)
	if err != nil {
		log.Printf("CreateCategory error for user %s: %v", claims.UserID, err)
		h.sendError(w, http.StatusInternalServerError, "failed to create category")
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"category": models.Category{ID: id, Name: req.Name, Type: req.Type},
	})
}

// GetWallets - GET /api/wallets
func (h *Handler) GetWallets(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	claims, err := auth.GetClaimsFromContext(r.Context())
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	wallets, err := db.GetWallets(r.Context(), claims.UserID)
	if err != nil {
		log.Printf("GetWallets error for user %s: %v", claims.UserID, err)
		h.sendError(w, http.StatusInternalServerError, "failed to get wallets")
		return
	}
	if wallets == nil {
		wallets = []models.Wallet{}
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"wallets": wallets,
	})
}

// GetStats - GET /api/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	claims, err := auth.GetClaimsFromContext(r.Context())
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	stats, err := db.GetMonthlyStats(r.Context(), claims.UserID)
	if err != nil {
		log.Printf("GetStats error for user %s: %v", claims.UserID, err)
		h.sendError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"stats": stats,
	})
}
