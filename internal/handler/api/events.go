// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/olegiv/gymsite/internal/middleware"
	"github.com/olegiv/gymsite/internal/model"
	"github.com/olegiv/gymsite/internal/store"
	"github.com/olegiv/gymsite/internal/validation"
)

// CreateEventRequest is the body of POST /events.
type CreateEventRequest struct {
	Title       string `json:"title" validate:"notblank,max=200"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Time        string `json:"time" validate:"omitempty,datetime=15:04"`
	Location    string `json:"location" validate:"max=200"`
	Description string `json:"description" validate:"max=5000"`
	Category    string `json:"category" validate:"max=100"`
	Status      string `json:"status" validate:"omitempty,oneof=active inactive"`
	Image       string `json:"image" validate:"omitempty,max=2048,imageref"`
}

// UpdateEventRequest is the body of PATCH /events/{id}. Other keys are ignored.
type UpdateEventRequest struct {
	Title       *string `json:"title" validate:"omitnil,notblank,max=200"`
	Date        *string `json:"date" validate:"omitnil,datetime=2006-01-02"`
	Time        *string `json:"time" validate:"omitempty,datetime=15:04"`
	Location    *string `json:"location" validate:"omitnil,max=200"`
	Description *string `json:"description" validate:"omitnil,max=5000"`
	Category    *string `json:"category" validate:"omitnil,max=100"`
	Status      *string `json:"status" validate:"omitnil,oneof=active inactive"`
	Image       *string `json:"image" validate:"omitnil,max=2048"`
}

// ListEvents handles GET /events, ordered by date then time.
// Anonymous callers see active events only; admins see all with ?all=true.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	activeOnly := !(isAdmin(r) && r.URL.Query().Get("all") == "true")

	events, err := h.queries.ListEvents(r.Context(), activeOnly)
	if err != nil {
		h.fail(w, r, Internal(fmt.Errorf("listing events: %w", err)))
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	WriteSuccess(w, events, nil)
}

// GetEvent handles GET /events/{id}.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.eventByID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !event.IsActive() && !isAdmin(r) {
		h.fail(w, r, NotFound("event not found"))
		return
	}
	WriteSuccess(w, event, nil)
}

// CreateEvent handles POST /events. Status defaults to active.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if msgs := h.validator.Struct(req); len(msgs) > 0 {
		h.fail(w, r, Validation(msgs))
		return
	}

	status := req.Status
	if status == "" {
		status = model.EventStatusActive
	}
	now := time.Now().UTC()

	event, err := h.queries.CreateEvent(ctx, store.CreateEventParams{
		Title:       strings.TrimSpace(req.Title),
		Date:        req.Date,
		Time:        req.Time,
		Location:    strings.TrimSpace(req.Location),
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		Status:      status,
		Image:       strings.TrimSpace(req.Image),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		h.fail(w, r, Internal(fmt.Errorf("creating event: %w", err)))
		return
	}

	h.logger.Info("event created", "event_id", event.ID, "user_id", middleware.GetUserID(r))
	h.onChange(ctx)
	WriteCreated(w, event)
}

// UpdateEvent handles PATCH /events/{id}. Last write wins.
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	existing, err := h.eventByID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req UpdateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	msgs := h.validator.Struct(req)
	if req.Image != nil && *req.Image != "" {
		msgs = append(msgs, h.validator.Rules(validation.Rule{Field: "image", Value: *req.Image, Tag: "imageref"})...)
	}
	if len(msgs) > 0 {
		h.fail(w, r, Validation(msgs))
		return
	}

	params := store.UpdateEventParams{
		ID:          existing.ID,
		Title:       existing.Title,
		Date:        existing.Date,
		Time:        existing.Time,
		Location:    existing.Location,
		Description: existing.Description,
		Category:    existing.Category,
		Status:      existing.Status,
		Image:       existing.Image,
		UpdatedAt:   time.Now().UTC(),
	}
	if req.Title != nil {
		params.Title = strings.TrimSpace(*req.Title)
	}
	if req.Date != nil {
		params.Date = *req.Date
	}
	if req.Time != nil {
		params.Time = *req.Time
	}
	if req.Location != nil {
		params.Location = strings.TrimSpace(*req.Location)
	}
	if req.Description != nil {
		params.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		params.Category = strings.TrimSpace(*req.Category)
	}
	if req.Status != nil {
		params.Status = *req.Status
	}
	if req.Image != nil {
		params.Image = strings.TrimSpace(*req.Image)
	}

	event, err := h.queries.UpdateEvent(ctx, params)
	if err != nil {
		h.fail(w, r, storeError(err, "event"))
		return
	}

	h.logger.Info("event updated", "event_id", event.ID, "user_id", middleware.GetUserID(r))
	h.onChange(ctx)
	WriteSuccess(w, event, nil)
}

// ToggleEvent handles POST /events/{id}/toggle.
func (h *Handler) ToggleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	existing, err := h.eventByID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	event, err := h.queries.SetEventStatus(ctx, store.SetEventStatusParams{
		ID:        existing.ID,
		Status:    existing.ToggledStatus(),
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		h.fail(w, r, storeError(err, "event"))
		return
	}

	h.logger.Info("event status toggled", "event_id", event.ID, "status", event.Status, "user_id", middleware.GetUserID(r))
	h.onChange(ctx)
	WriteSuccess(w, event, nil)
}

// DeleteEvent handles DELETE /events/{id}.
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	existing, err := h.eventByID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.queries.DeleteEvent(ctx, existing.ID); err != nil {
		h.fail(w, r, Internal(fmt.Errorf("deleting event: %w", err)))
		return
	}

	h.logger.Info("event deleted", "event_id", existing.ID, "user_id", middleware.GetUserID(r))
	h.onChange(ctx)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) eventByID(r *http.Request) (model.Event, error) {
	id, err := parseID(r, "event")
	if err != nil {
		return model.Event{}, err
	}
	event, err := h.queries.GetEventByID(r.Context(), id)
	if err != nil {
		return model.Event{}, storeError(err, "event")
	}
	return event, nil
}
