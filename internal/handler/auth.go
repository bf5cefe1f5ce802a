// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/gymsite/internal/auth"
	"github.com/olegiv/gymsite/internal/middleware"
	"github.com/olegiv/gymsite/internal/model"
	"github.com/olegiv/gymsite/internal/store"
	"github.com/olegiv/gymsite/internal/util"
)

const maxLoginBody = 16 << 10

// AuthHandler handles admin login, logout and identity routes.
type AuthHandler struct {
	queries         *store.Queries
	sessionManager  *scs.SessionManager
	loginProtection *middleware.LoginProtection
	logger          *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. lp may be nil.
func NewAuthHandler(db *sql.DB, sm *scs.SessionManager, lp *middleware.LoginProtection, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		queries:         store.New(db),
		sessionManager:  sm,
		loginProtection: lp,
		logger:          logger.With("category", model.LogCategoryAuth),
	}
}

// credentials is the login request, sent as JSON or as a form.
type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// dataEnvelope mirrors the API success wrapper.
type dataEnvelope struct {
	Data any `json:"data"`
}

// Login handles POST /admin/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientIP := util.ClientIP(r)

	creds, err := readCredentials(w, r)
	if err != nil {
		middleware.WriteAPIError(w, http.StatusBadRequest, "validation_error", "Invalid login request", []string{err.Error()})
		return
	}
	var missing []string
	if creds.Email == "" {
		missing = append(missing, "email is required")
	}
	if creds.Password == "" {
		missing = append(missing, "password is required")
	}
	if len(missing) > 0 {
		middleware.WriteAPIError(w, http.StatusBadRequest, "validation_error", "Validation failed", missing)
		return
	}

	if h.loginProtection != nil {
		if locked, remaining := h.loginProtection.IsAccountLocked(creds.Email); locked {
			h.logger.Warn("login attempt on locked account", "email", creds.Email, "client_ip", clientIP)
			h.writeLocked(w, remaining)
			return
		}
	}

	user, err := h.queries.GetUserByEmail(ctx, creds.Email)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			h.logger.Error("database error during login", "error", err)
			middleware.WriteAPIError(w, http.StatusInternalServerError, "internal_error", "An internal error occurred", nil)
			return
		}
		h.logger.Warn("login failed: user not found", "email", creds.Email, "client_ip", clientIP)
		// Unknown emails count too so that responses do not reveal which accounts exist.
		h.rejectLogin(w, creds.Email)
		return
	}

	valid, err := auth.CheckPassword(creds.Password, user.PasswordHash)
	if err != nil {
		h.logger.Error("password check error", "error", err, "user_id", user.ID)
	}
	if !valid {
		h.logger.Warn("login failed: invalid password", "user_id", user.ID, "client_ip", clientIP)
		h.rejectLogin(w, creds.Email)
		return
	}

	if h.loginProtection != nil {
		h.loginProtection.RecordSuccessfulLogin(creds.Email)
	}

	if auth.NeedsRehash(user.PasswordHash) {
		if newHash, err := auth.HashPassword(creds.Password); err == nil {
			if err := h.queries.UpdateUserPassword(ctx, store.UpdateUserPasswordParams{
				ID:           user.ID,
				PasswordHash: newHash,
				UpdatedAt:    time.Now().UTC(),
			}); err != nil {
				h.logger.Error("failed to re-hash password", "error", err, "user_id", user.ID)
			} else {
				h.logger.Info("password re-hashed with updated parameters", "user_id", user.ID)
			}
		}
	}

	if err := h.queries.UpdateUserLastLogin(ctx, store.UpdateUserLastLoginParams{
		ID:          user.ID,
		LastLoginAt: sql.NullTime{Time: time.Now().UTC(), Valid: true},
	}); err != nil {
		h.logger.Error("failed to update last login time", "error", err, "user_id", user.ID)
	}

	// New token on privilege change.
	if err := h.sessionManager.RenewToken(ctx); err != nil {
		h.logger.Error("session renewal error", "error", err)
		middleware.WriteAPIError(w, http.StatusInternalServerError, "internal_error", "An internal error occurred", nil)
		return
	}
	h.sessionManager.Put(ctx, middleware.SessionKeyUserID, user.ID)
	h.sessionManager.Put(ctx, middleware.SessionKeyRole, user.Role)

	h.logger.Info("user logged in", "user_id", user.ID, "client_ip", clientIP)
	writeJSON(w, http.StatusOK, dataEnvelope{Data: user})
}

// Logout handles POST /admin/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := h.sessionManager.GetInt64(r.Context(), middleware.SessionKeyUserID)
	if err := h.sessionManager.Destroy(r.Context()); err != nil {
		h.logger.Error("session destroy error", "error", err)
	}
	if userID > 0 {
		h.logger.Info("user logged out", "user_id", userID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /admin/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		middleware.WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
		return
	}
	writeJSON(w, http.StatusOK, dataEnvelope{Data: user})
}

// rejectLogin records a failure and answers 401, or 429 once the account locks.
func (h *AuthHandler) rejectLogin(w http.ResponseWriter, email string) {
	if h.loginProtection != nil {
		if locked, lockDuration := h.loginProtection.RecordFailedAttempt(email); locked {
			h.logger.Warn("account locked due to failed attempts", "email", email, "duration", lockDuration.String())
			h.writeLocked(w, lockDuration)
			return
		}
	}
	middleware.WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Invalid email or password", nil)
}

func (h *AuthHandler) writeLocked(w http.ResponseWriter, remaining time.Duration) {
	secs := int(remaining.Seconds())
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	middleware.WriteAPIError(w, http.StatusTooManyRequests, "rate_limit_exceeded",
		"Too many failed attempts. Try again in "+formatDuration(remaining)+".", nil)
}

// readCredentials accepts a JSON body or a urlencoded/multipart form.
func readCredentials(w http.ResponseWriter, r *http.Request) (credentials, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBody)

	var c credentials
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			return c, errors.New("request body is not valid JSON")
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return c, errors.New("request body is not a valid form")
		}
		c.Email = r.PostFormValue("email")
		c.Password = r.PostFormValue("password")
	}
	c.Email = strings.TrimSpace(c.Email)
	return c, nil
}

// formatDuration formats a duration into a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", mins)
	}
	hours := int(d.Hours())
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
