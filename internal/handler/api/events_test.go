// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/gymsite/internal/model"
)

func idParam(e model.Event) map[string]string {
	return map[string]string{"id": strconv.FormatInt(e.ID, 10)}
}

func TestListEvents(t *testing.T) {
	db, h, _ := testSetup(t)
	createTestEvent(t, db, "Later", "2026-09-01", model.EventStatusActive)
	createTestEvent(t, db, "Sooner", "2026-08-01", model.EventStatusActive)
	createTestEvent(t, db, "Hidden", "2026-07-01", model.EventStatusInactive)

	w := executeHandler(t, h.ListEvents, newGetRequest(t, "/events?all=true", nil))
	require.Equal(t, http.StatusOK, w.Code)
	events, _ := unmarshalList[model.Event](t, w)
	require.Len(t, events, 2)
	assert.Equal(t, "Sooner", events[0].Title)
	assert.Equal(t, "Later", events[1].Title)

	w = executeHandler(t, h.ListEvents, asAdmin(newGetRequest(t, "/events?all=true", nil)))
	events, _ = unmarshalList[model.Event](t, w)
	require.Len(t, events, 3)
	assert.Equal(t, "Hidden", events[0].Title)
}

func TestGetEvent_InactiveHiddenFromPublic(t *testing.T) {
	db, h, _ := testSetup(t)
	e := createTestEvent(t, db, "Hidden", "2026-07-01", model.EventStatusInactive)

	w := executeHandler(t, h.GetEvent, newGetRequest(t, "/events/1", idParam(e)))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = executeHandler(t, h.GetEvent, asAdmin(newGetRequest(t, "/events/1", idParam(e))))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateEvent(t *testing.T) {
	_, h, changes := testSetup(t)

	body := `{"title":"Open Mat","date":"2026-06-12","time":"19:30","location":"Main hall","category":"BJJ"}`
	w := executeHandler(t, h.CreateEvent, asAdmin(newJSONRequest(t, http.MethodPost, "/events", body, nil)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	event := unmarshalData[model.Event](t, w)
	assert.Equal(t, "Open Mat", event.Title)
	assert.Equal(t, model.EventStatusActive, event.Status)
	assert.Equal(t, "19:30", event.Time)
	assert.Equal(t, 1, changes.n)
}

func TestCreateEvent_Validation(t *testing.T) {
	_, h, _ := testSetup(t)

	body := `{"title":"Open Mat","date":"12/06/2026","time":"7pm","status":"paused"}`
	w := executeHandler(t, h.CreateEvent, asAdmin(newJSONRequest(t, http.MethodPost, "/events", body, nil)))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `[
		"date must match the format 2006-01-02",
		"time must match the format 15:04",
		"status must be one of: active, inactive"
	]`, string(unmarshalError(t, w).Error.Details))
}

func TestUpdateEvent(t *testing.T) {
	db, h, _ := testSetup(t)
	e := createTestEvent(t, db, "Open Mat", "2026-06-12", model.EventStatusActive)

	body := `{"location":"Studio B","createdAt":"2000-01-01T00:00:00Z","unknown":1}`
	w := executeHandler(t, h.UpdateEvent, asAdmin(newJSONRequest(t, http.MethodPatch, "/events/1", body, idParam(e))))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got := unmarshalData[model.Event](t, w)
	assert.Equal(t, "Studio B", got.Location)
	assert.Equal(t, "Open Mat", got.Title)
	assert.True(t, got.CreatedAt.Equal(e.CreatedAt))
}

func TestUpdateEvent_BadID(t *testing.T) {
	_, h, _ := testSetup(t)

	req := asAdmin(newJSONRequest(t, http.MethodPatch, "/events/abc", `{}`, map[string]string{"id": "abc"}))
	w := executeHandler(t, h.UpdateEvent, req)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "event not found", unmarshalError(t, w).Error.Message)
}

func TestToggleEvent(t *testing.T) {
	db, h, changes := testSetup(t)
	e := createTestEvent(t, db, "Open Mat", "2026-06-12", model.EventStatusActive)

	w := executeHandler(t, h.ToggleEvent, asAdmin(newJSONRequest(t, http.MethodPost, "/events/1/toggle", "", idParam(e))))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.EventStatusInactive, unmarshalData[model.Event](t, w).Status)

	w = executeHandler(t, h.ToggleEvent, asAdmin(newJSONRequest(t, http.MethodPost, "/events/1/toggle", "", idParam(e))))
	assert.Equal(t, model.EventStatusActive, unmarshalData[model.Event](t, w).Status)
	assert.Equal(t, 2, changes.n)
}

func TestDeleteEvent(t *testing.T) {
	db, h, _ := testSetup(t)
	e := createTestEvent(t, db, "Open Mat", "2026-06-12", model.EventStatusActive)

	w := executeHandler(t, h.DeleteEvent, asAdmin(newJSONRequest(t, http.MethodDelete, "/events/1", "", idParam(e))))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = executeHandler(t, h.DeleteEvent, asAdmin(newJSONRequest(t, http.MethodDelete, "/events/1", "", idParam(e))))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
