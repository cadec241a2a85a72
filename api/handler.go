package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/moneymate-th/transaction-ai-service/internal/ai"
	"github.com/moneymate-th/transaction-ai-service/internal/auth"
	"github.com/moneymate-th/transaction-ai-service/internal/db"
	"github.com/moneymate-th/transaction-ai-service/internal/models"
	"github.com/moneymate-th/transaction-ai-service/internal/storage"
)

const (
	MaxUploadSize = 10 * 1024 * 1024 // 10MB per slip
	MaxBatchSize  = 10               // slips per batch upload
	Version       = "1.0.0"
)

// Handler handles HTTP requests for transaction extraction
type Handler struct {
	config    *models.Config
	extractor *ai.Extractor
	providers []ai.Provider
}

// NewHandler creates a new API handler with the provider chain built from
// config order.
func NewHandler(config *models.Config) *Handler {
	providers := buildProviders(config)

	timeout := time.Duration(0)
	if config.AI.Timeout != "" {
		if d, err := time.ParseDuration(config.AI.Timeout); err == nil {
			timeout = d
		} else {
			log.Printf("invalid ai.timeout %q, using default", config.AI.Timeout)
		}
	}

	extractor := ai.NewExtractor(providers, ai.ExtractorConfig{
		FallbackCategory:    config.FallbackCategoryName(),
		BatchAutoCategorize: config.BatchAutoCategorize(),
		ProviderTimeout:     timeout,
	})

	return &Handler{
		config:    config,
		extractor: extractor,
		providers: providers,
	}
}

// buildProviders turns the configured provider list into clients, in order.
func buildProviders(config *models.Config) []ai.Provider {
	var providers []ai.Provider
	for _, pc := range config.AI.Providers {
		if pc.APIKey == "" {
			log.Printf("provider %s has no API key, skipping", pc.Name)
			continue
		}
		switch pc.Name {
		case "gemini":
			providers = append(providers, ai.NewGeminiProvider(pc.APIKey, pc.Model))
		case "groq":
			providers = append(providers, ai.NewGroqProvider(pc.APIKey, pc.BaseURL, pc.Model))
		default:
			log.Printf("unsupported AI provider: %s", pc.Name)
		}
	}
	return providers
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Public endpoints
	router.HandleFunc("/api/login", auth.LoginHandler).Methods("POST")
	router.HandleFunc("/health", h.Health).Methods("GET")

	// Everything else requires a valid token
	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(auth.JWTMiddleware)

	protected.HandleFunc("/me", auth.MeHandler).Methods("GET")

	// Extraction
	protected.HandleFunc("/extract/text", h.ExtractText).Methods("POST")
	protected.HandleFunc("/extract/slip", h.ExtractSlip).Methods("POST")
	protected.HandleFunc("/extract/slips", h.ExtractSlipBatch).Methods("POST")

	// Transaction CRUD
	protected.HandleFunc("/transactions", h.GetTransactions).Methods("GET")
	protected.HandleFunc("/transactions", h.CreateTransaction).Methods("POST")
	protected.HandleFunc("/transactions/{id}", h.GetTransaction).Methods("GET")
	protected.HandleFunc("/transactions/{id}", h.UpdateTransaction).Methods("PUT")
	protected.HandleFunc("/transactions/{id}", h.DeleteTransaction).Methods("DELETE")
	protected.HandleFunc("/transactions/{id}/image", h.GetTransactionImage).Methods("GET")

	// Lookups and stats
	protected.HandleFunc("/categories", h.GetCategories).Methods("GET")
	protected.HandleFunc("/categories", h.CreateCategory).Methods("POST")
	protected.HandleFunc("/wallets", h.GetWallets).Methods("GET")
	protected.HandleFunc("/stats", h.GetStats).Methods("GET")

	return router
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status    string        `json:"status"`
	Version   string        `json:"version"`
	Timestamp string        `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Memory    MemoryStats   `json:"memory"`
	Database  ServiceStatus `json:"database"`
	Storage   ServiceStatus `json:"storage"`
	AI        []string      `json:"ai"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus represents the status of a service dependency
type ServiceStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

var startTime = time.Now()

// Health endpoint - enhanced for monitoring
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	providerNames := make([]string, 0, len(h.providers))
	for _, p := range h.providers {
		providerNames = append(providerNames, p.Name())
	}

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		Database: h.checkDatabase(),
		Storage:  h.checkStorage(),
		AI:       providerNames,
	}

	// Without at least one provider the service cannot do its job
	if len(h.providers) == 0 {
		response.Status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

// checkDatabase verifies PostgreSQL connection
func (h *Handler) checkDatabase() ServiceStatus {
	if db.Pool == nil {
		return ServiceStatus{
			Available: false,
			Error:     "database pool not initialized",
		}
	}

	return ServiceStatus{
		Available: true,
		Version:   "PostgreSQL via PgBouncer",
	}
}

// checkStorage verifies MinIO connection
func (h *Handler) checkStorage() ServiceStatus {
	if storage.Client == nil {
		return ServiceStatus{
			Available: false,
			Error:     "storage client not initialized",
		}
	}

	return ServiceStatus{
		Available: true,
		Version:   "MinIO S3",
	}
}

// ExtractTextRequest is the free-text analysis request body. Categories may
// be supplied inline for extract-only mode; with a database they are loaded
// from the user's account instead.
type ExtractTextRequest struct {
	Text       string            `json:"text"`
	WalletID   string            `json:"walletId"`
	Categories []models.Category `json:"categories,omitempty"`
}

// ExtractText analyzes a typed or voice-transcribed sentence into a draft
// transaction.
func (h *Handler) ExtractText(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()

	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ExtractTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		h.sendError(w, http.StatusBadRequest, "text is required")
		return
	}

	categories := h.loadCategories(r, claims.UserID, req.Categories)

	result, err := h.extractor.ExtractFromText(ctx, req.Text, categories, req.WalletID)
	if err != nil {
		h.sendExtractionError(w, err)
		return
	}

	json.NewEncoder(w).Encode(models.ExtractionResult{
		Success:  true,
		Draft:    &result.Draft,
		Complete: result.Complete,
		Provider: result.Provider,
	})
}

// ExtractSlip analyzes one bank-slip image. The draft always goes back to the
// client for review; nothing is saved here.
func (h *Handler) ExtractSlip(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()

	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		h.sendError(w, http.StatusBadRequest, "file too large or invalid form data")
		return
	}

	imageData, contentType, err := readSlipFile(r)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	walletID := r.FormValue("walletId")
	existingNotes := h.loadNotes(r, claims.UserID)

	result, err := h.extractor.ExtractFromSlip(ctx, imageData, contentType, walletID, existingNotes)
	if err != nil {
		h.sendExtractionError(w, err)
		return
	}

	// Keep the slip image for later reference; failure here never blocks the
	// draft.
	imageURL := h.storeSlipImage(ctx, claims.UserID, imageData, contentType)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":   true,
		"draft":     result.Draft,
		"complete":  result.Complete,
		"duplicate": result.Duplicate,
		"provider":  result.Provider,
		"imageUrl":  imageURL,
	})
}

// ExtractSlipBatch analyzes up to MaxBatchSize slips in one upload. Drafts
// that come back complete and non-duplicate are saved immediately; the rest
// are returned for review.
func (h *Handler) ExtractSlipBatch(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()

	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBatchSize*MaxUploadSize)
	if err := r.ParseMultipartForm(MaxBatchSize * MaxUploadSize); err != nil {
		h.sendError(w, http.StatusBadRequest, "upload too large or invalid form data")
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		files = r.MultipartForm.File["images"]
	}
	if len(files) == 0 {
		h.sendError(w, http.StatusBadRequest, "no files provided (use 'files' or 'images' field)")
		return
	}
	if len(files) > MaxBatchSize {
		h.sendError(w, http.StatusBadRequest, fmt.Sprintf("too many files, max %d per batch", MaxBatchSize))
		return
	}

	walletID := r.FormValue("walletId")
	categories := h.loadCategories(r, claims.UserID, nil)
	existingNotes := h.loadNotes(r, claims.UserID)

	slips := make([]ai.SlipImage, 0, len(files))
	for _, fh := range files {
		data, contentType, err := readMultipartFile(fh)
		if err != nil {
			h.sendError(w, http.StatusBadRequest, fmt.Sprintf("failed to read %s: %v", fh.Filename, err))
			return
		}
		slips = append(slips, ai.SlipImage{Data: data, MIME: contentType})
	}

	items := h.extractor.ExtractSlipBatch(ctx, slips, categories, walletID, existingNotes)

	type batchResult struct {
		Filename      string                   `json:"filename"`
		Success       bool                     `json:"success"`
		Draft         *models.DraftTransaction `json:"draft,omitempty"`
		Complete      bool                     `json:"complete"`
		Duplicate     bool                     `json:"duplicate,omitempty"`
		Saved         bool                     `json:"saved"`
		TransactionID string                   `json:"transactionId,omitempty"`
		Error         string                   `json:"error,omitempty"`
	}

	results := make([]batchResult, 0, len(items))
	saved := 0
	for i, item := range items {
		br := batchResult{Filename: files[i].Filename}
		if item.Err != nil {
			br.Error = item.Err.Error()
			results = append(results, br)
			continue
		}

		br.Success = true
		br.Draft = &item.Result.Draft
		br.Complete = item.Result.Complete
		br.Duplicate = item.Result.Duplicate

		if item.Result.Complete && !item.Result.Duplicate && db.Pool != nil {
			imageURL := h.storeSlipImage(ctx, claims.UserID, slips[i].Data, slips[i].MIME)
			tx, err := h.saveDraft(ctx, claims.UserID, &item.Result.Draft, imageURL)
			if err != nil {
				log.Printf("batch save failed for %s: %v", files[i].Filename, err)
				br.Error = "extracted but not saved: " + err.Error()
			} else {
				br.Saved = true
				br.TransactionID = tx.ID.String()
				saved++
			}
		}
		results = append(results, br)
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"results": results,
		"total":   len(results),
		"saved":   saved,
	})
}

// loadCategories prefers the user's stored categories; inline ones from the
// request only apply in extract-only mode.
func (h *Handler) loadCategories(r *http.Request, userID string, inline []models.Category) []models.Category {
	if db.Pool != nil {
		cats, err := db.GetCategories(r.Context(), userID)
		if err != nil {
			log.Printf("failed to load categories for user %s: %v", userID, err)
			return inline
		}
		return cats
	}
	return inline
}

// loadNotes fetches the notes used by the slip duplicate check. Best effort:
// in extract-only mode the check simply sees no history.
func (h *Handler) loadNotes(r *http.Request, userID string) []string {
	if db.Pool == nil {
		return nil
	}
	notes, err := db.GetNotesWithReferences(r.Context(), userID)
	if err != nil {
		log.Printf("failed to load notes for user %s: %v", userID, err)
		return nil
	}
	return notes
}

// storeSlipImage uploads the slip to MinIO and returns the stored object
// path, or "" when storage is unavailable or the upload fails.
func (h *Handler) storeSlipImage(ctx context.Context, userID string, data []byte, contentType string) string {
	if storage.Client == nil {
		return ""
	}

	filename := fmt.Sprintf("%s_%s%s",
		time.Now().Format("20060102_150405"),
		uuid.New().String()[:8],
		storage.GetFileExtension(contentType),
	)

	path, err := storage.UploadSlipImage(ctx, userID, filename, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		log.Printf("failed to upload slip image: %v", err)
		return ""
	}
	return path
}

// saveDraft persists an auto-accepted batch draft.
func (h *Handler) saveDraft(ctx context.Context, userID string, draft *models.DraftTransaction, imageURL string) (*db.Transaction, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	wid, err := uuid.Parse(draft.WalletID)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet id: %w", err)
	}
	date, err := time.Parse("2006-01-02", draft.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid date: %w", err)
	}

	tx := &db.Transaction{
		UserID:          uid,
		WalletID:        wid,
		Type:            draft.Type,
		Amount:          draft.Amount,
		Date:            date,
		Note:            draft.Note,
		ReferenceNumber: draft.ReferenceNumber,
		SlipImageURL:    imageURL,
	}
	if draft.CategoryID != "" {
		cid, err := uuid.Parse(draft.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("invalid category id: %w", err)
		}
		tx.CategoryID = &cid
	}

	if err := db.SaveTransaction(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// readSlipFile pulls the uploaded image out of a single-slip form. Accepts
// both "file" and "image" field names.
func readSlipFile(r *http.Request) ([]byte, string, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		file, header, err = r.FormFile("image")
		if err != nil {
			return nil, "", fmt.Errorf("no file provided (use 'file' or 'image' field)")
		}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file")
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return data, contentType, nil
}

func readMultipartFile(fh *multipart.FileHeader) ([]byte, string, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return data, contentType, nil
}

// sendExtractionError maps orchestrator errors onto HTTP statuses with a
// stable errorKind the client can branch on.
func (h *Handler) sendExtractionError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	kind := "AllProvidersFailed"

	var apf *ai.AllProvidersFailed
	switch {
	case errors.Is(err, ai.ErrNoProviderConfigured):
		status = http.StatusServiceUnavailable
		kind = "NoProviderConfigured"
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		status = 499 // client closed request
		kind = "Cancelled"
	case errors.As(err, &apf):
		var perr *ai.ProviderError
		if errors.As(apf.Last, &perr) {
			kind = perr.Kind
		}
	}

	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ExtractionResult{
		Success:   false,
		ErrorKind: kind,
		Message:   err.Error(),
	})
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
