// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/olegiv/gymsite/internal/middleware"
	"github.com/olegiv/gymsite/internal/store"
)

// UpdateSettingsRequest is the body of POST /settings. Omitted fields keep
// their stored value; unknown keys are ignored.
type UpdateSettingsRequest struct {
	GymName   *string `json:"gymName" validate:"omitnil,max=100"`
	Phone     *string `json:"phone" validate:"omitnil,max=40"`
	Instagram *string `json:"instagram" validate:"omitnil,max=100"`
	Address   *string `json:"address" validate:"omitnil,max=300"`
	Website   *string `json:"website" validate:"omitempty,max=300,httpurl"`
}

// GetSettings handles GET /settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.queries.GetSettings(r.Context())
	if err != nil {
		h.fail(w, r, Internal(fmt.Errorf("loading settings: %w", err)))
		return
	}
	WriteSuccess(w, settings, nil)
}

// UpdateSettings handles POST /settings.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req UpdateSettingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if msgs := h.validator.Struct(req); len(msgs) > 0 {
		h.fail(w, r, Validation(msgs))
		return
	}

	current, err := h.queries.GetSettings(ctx)
	if err != nil {
		h.fail(w, r, Internal(fmt.Errorf("loading settings: %w", err)))
		return
	}

	params := store.UpsertSettingsParams{
		GymName:   pick(req.GymName, current.GymName),
		Phone:     pick(req.Phone, current.Phone),
		Instagram: strings.TrimPrefix(pick(req.Instagram, current.Instagram), "@"),
		Address:   pick(req.Address, current.Address),
		Website:   pick(req.Website, current.Website),
		UpdatedAt: time.Now().UTC(),
	}

	settings, err := h.queries.UpsertSettings(ctx, params)
	if err != nil {
		h.fail(w, r, Internal(fmt.Errorf("saving settings: %w", err)))
		return
	}

	h.logger.Info("settings updated", "user_id", middleware.GetUserID(r))
	h.onChange(ctx)
	WriteSuccess(w, settings, nil)
}

// pick returns the trimmed update when present, else the current value.
func pick(update *string, current string) string {
	if update == nil {
		return current
	}
	return strings.TrimSpace(*update)
}
