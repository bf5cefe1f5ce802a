// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the JSON handlers for posts, events, settings,
// automation and uploads, and the error envelope shared by every JSON endpoint.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/gymsite/internal/automation"
	"github.com/olegiv/gymsite/internal/imaging"
	"github.com/olegiv/gymsite/internal/middleware"
	"github.com/olegiv/gymsite/internal/store"
	"github.com/olegiv/gymsite/internal/validation"
)

// MaxJSONBody caps admin JSON request bodies.
const MaxJSONBody = 1 << 20

// ChangeHook is called after content that the public site shows changes.
type ChangeHook func(ctx context.Context)

// DefaultMaxUpload is the upload size limit when WithImages is given none.
const DefaultMaxUpload = 10 << 20

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	queries   *store.Queries
	validator *validation.Validator
	logger    *slog.Logger
	onChange  ChangeHook

	trigger   *automation.Trigger
	images    *imaging.Processor
	maxUpload int64
}

// Option configures optional Handler dependencies.
type Option func(*Handler)

// WithTrigger enables POST /ai/generate.
func WithTrigger(t *automation.Trigger) Option {
	return func(h *Handler) { h.trigger = t }
}

// WithImages enables POST /upload with the given size limit in bytes.
func WithImages(p *imaging.Processor, maxBytes int64) Option {
	return func(h *Handler) {
		h.images = p
		if maxBytes > 0 {
			h.maxUpload = maxBytes
		}
	}
}

// NewHandler creates a new API handler. onChange may be nil.
func NewHandler(db *sql.DB, logger *slog.Logger, onChange ChangeHook, opts ...Option) *Handler {
	if onChange == nil {
		onChange = func(context.Context) {}
	}
	h := &Handler{
		queries:   store.New(db),
		validator: validation.New(),
		logger:    logger,
		onChange:  onChange,
		maxUpload: DefaultMaxUpload,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Pages   int   `json:"pages"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 response wrapped in the data envelope.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteCreated writes a 201 response wrapped in the data envelope.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// isAdmin reports whether the request carries an admin session.
func isAdmin(r *http.Request) bool {
	u := middleware.GetUser(r)
	return u != nil && u.IsAdmin()
}

// decodeJSON reads a JSON body into dst. Errors are returned as *Error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return DecodeError(err)
	}
	return nil
}

// parseID reads the {id} URL parameter. A malformed id is reported as a
// missing what.
func parseID(r *http.Request, what string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, NotFound(what + " not found")
	}
	return id, nil
}

// storeError maps a query error to the API taxonomy.
func storeError(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound(what + " not found")
	}
	return Internal(err)
}

// fail logs unexpected errors and writes the error envelope.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	WriteErr(w, err)
}
