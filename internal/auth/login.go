package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/moneymate-th/transaction-ai-service/internal/db"
)

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents the successful login response
type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// LoginHandler handles user authentication
func LoginHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if db.Pool == nil {
		http.Error(w, `{"error":"authentication service unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		http.Error(w, `{"error":"email and password are required"}`, http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	query := `SELECT id, email, COALESCE(name, ''), password_hash
	          FROM users
	          WHERE lower(email) = $1
	          AND (locked_until IS NULL OR locked_until < NOW())`

	var id, dbEmail, name string
	var passwordHash *string
	err := db.Pool.QueryRow(ctx, query, email).Scan(&id, &dbEmail, &name, &passwordHash)
	if err != nil || passwordHash == nil {
		http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*passwordHash), []byte(req.Password)); err != nil {
		// Count the failed attempt; five in a row locks the account for half
		// an hour.
		go func() {
			ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel2()
			db.Pool.Exec(ctx2, `UPDATE users SET failed_logins = COALESCE(failed_logins, 0) + 1,
			                   locked_until = CASE WHEN COALESCE(failed_logins, 0) >= 4
			                   THEN NOW() + INTERVAL '30 minutes' ELSE NULL END
			                   WHERE id = $1::uuid`, id)
		}()
		http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
		return
	}

	token, err := GenerateToken(id, dbEmail, name)
	if err != nil {
		http.Error(w, `{"error":"failed to generate token"}`, http.StatusInternalServerError)
		return
	}

	// Clear failed attempts and record the login in background
	go func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		db.Pool.Exec(ctx2, `UPDATE users SET
		    last_login = NOW(),
		    failed_logins = 0,
		    locked_until = NULL
		    WHERE id = $1::uuid`, id)
	}()

	json.NewEncoder(w).Encode(LoginResponse{
		Token:  token,
		UserID: id,
		Email:  dbEmail,
		Name:   name,
	})
}

// MeResponse is the session check payload.
type MeResponse struct {
	UserID string           `json:"userId"`
	Email  string           `json:"email"`
	Name   string           `json:"name"`
	Stats  *db.MonthlyStats `json:"stats,omitempty"`
}

// MeHandler returns the authenticated user plus their current-month totals.
func MeHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	claims, err := GetClaimsFromContext(r.Context())
	if err != nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	resp := MeResponse{
		UserID: claims.UserID,
		Email:  claims.Email,
		Name:   claims.Name,
	}

	// Stats are best effort; the session check still works in extract-only
	// mode.
	if stats, err := db.GetMonthlyStats(r.Context(), claims.UserID); err == nil {
		resp.Stats = stats
	}

	json.NewEncoder(w).Encode(resp)
}
