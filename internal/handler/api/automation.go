// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/olegiv/gymsite/internal/automation"
	"github.com/olegiv/gymsite/internal/middleware"
	"github.com/olegiv/gymsite/internal/store"
)

// GenerateResponse is the body of a successful POST /ai/generate.
type GenerateResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// AutomationSettingsRequest is the body of PUT /automation/settings.
type AutomationSettingsRequest struct {
	Enabled        bool     `json:"enabled"`
	FrequencyDays  int      `json:"frequencyDays" validate:"gte=1,lte=365"`
	Topics         []string `json:"topics" validate:"max=50,dive,notblank,max=100"`
	TargetCategory string   `json:"targetCategory" validate:"max=100"`
}

// Generate handles POST /ai/generate.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		h.fail(w, r, Unavailable(automation.ErrNotConfigured.Error(), nil))
		return
	}

	var req automation.Request
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.trigger.Generate(r.Context(), req)
	if err != nil {
		h.fail(w, r, generateError(err))
		return
	}

	WriteJSON(w, http.StatusOK, GenerateResponse{
		Success: true,
		Status:  res.Status,
		Message: res.Message,
		Data:    res.Data,
	})
}

// generateError maps trigger failures onto the error taxonomy.
func generateError(err error) error {
	var statusErr *automation.UpstreamStatusError
	switch {
	case errors.Is(err, automation.ErrPromptRequired):
		return BadRequest(err.Error())
	case errors.Is(err, automation.ErrNotConfigured):
		return Unavailable(err.Error(), err)
	case errors.Is(err, automation.ErrBreakerOpen):
		return Unavailable(automation.ErrBreakerOpen.Error(), err)
	case errors.Is(err, automation.ErrClosed):
		return Unavailable(automation.ErrClosed.Error(), err)
	case errors.As(err, &statusErr):
		return Upstream("Automation webhook returned an error", &UpstreamDetails{
			UpstreamStatus: statusErr.Status,
			UpstreamBody:   statusErr.Body,
		}, err)
	case errors.Is(err, automation.ErrUnreachable):
		return Upstream("Automation webhook is unreachable", nil, err)
	default:
		return Internal(err)
	}
}

// GetAutomationSettings handles GET /automation/settings.
func (h *Handler) GetAutomationSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.queries.GetAutomationSettings(r.Context())
	if err != nil {
		h.fail(w, r, Internal(fmt.Errorf("loading automation settings: %w", err)))
		return
	}
	WriteSuccess(w, settings, nil)
}

// UpdateAutomationSettings handles PUT /automation/settings. Run
// timestamps are left untouched.
func (h *Handler) UpdateAutomationSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AutomationSettingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if msgs := h.validator.Struct(req); len(msgs) > 0 {
		h.fail(w, r, Validation(msgs))
		return
	}

	topics := make([]string, 0, len(req.Topics))
	for _, t := range req.Topics {
		topics = append(topics, strings.TrimSpace(t))
	}

	settings, err := h.queries.UpsertAutomationSettings(ctx, store.UpsertAutomationSettingsParams{
		Enabled:        req.Enabled,
		FrequencyDays:  req.FrequencyDays,
		Topics:         topics,
		TargetCategory: strings.TrimSpace(req.TargetCategory),
		UpdatedAt:      time.Now().UTC(),
	})
	if err != nil {
		h.fail(w, r, Internal(fmt.Errorf("saving automation settings: %w", err)))
		return
	}

	h.logger.Info("automation settings updated",
		"enabled", settings.Enabled,
		"frequency_days", settings.FrequencyDays,
		"user_id", middleware.GetUserID(r),
	)
	WriteSuccess(w, settings, nil)
}
