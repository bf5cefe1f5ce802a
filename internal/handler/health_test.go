// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/gymsite/internal/automation"
	"github.com/olegiv/gymsite/internal/middleware"
	"github.com/olegiv/gymsite/internal/model"
	"github.com/olegiv/gymsite/internal/scheduler"
	"github.com/olegiv/gymsite/internal/testutil"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubAutomation struct{ status automation.Status }

func (a stubAutomation) Status(context.Context) automation.Status { return a.status }

type stubJobs []scheduler.JobInfo

func (j stubJobs) List() []scheduler.JobInfo { return j }

func asAdminRequest(r *http.Request) *http.Request {
	return r.WithContext(middleware.WithUser(r.Context(), model.User{ID: 1, Role: model.RoleAdmin}))
}

func TestHealth_PublicResponseIsMinimal(t *testing.T) {
	h := NewHealthHandler(testutil.TestDB(t), nil, nil, t.TempDir())

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]any{"status": StatusHealthy}, body)
}

func TestHealth_AdminGetsDetails(t *testing.T) {
	trigger := stubAutomation{status: automation.Status{Provider: "webhook", Configured: true, Breaker: "closed"}}
	jobs := stubJobs{{Name: scheduler.JobSiteRefresh, Schedule: "@every 5m"}}
	h := NewHealthHandler(testutil.TestDB(t), stubPinger{}, trigger, t.TempDir()).WithJobs(jobs)

	w := httptest.NewRecorder()
	h.Health(w, asAdminRequest(httptest.NewRequest(http.MethodGet, "/health?verbose=true", nil)))

	require.Equal(t, http.StatusOK, w.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Equal(t, StatusHealthy, status.Checks["database"].Status)
	assert.Equal(t, StatusHealthy, status.Checks["cache"].Status)
	assert.Contains(t, status.Checks, "disk")
	require.NotNil(t, status.Automation)
	assert.Equal(t, "closed", status.Automation.Breaker)
	require.Len(t, status.Jobs, 1)
	assert.Equal(t, scheduler.JobSiteRefresh, status.Jobs[0].Name)
	require.NotNil(t, status.System)
	assert.NotEmpty(t, status.System.GoVersion)
}

func TestHealth_NonAdminUserGetsMinimal(t *testing.T) {
	h := NewHealthHandler(testutil.TestDB(t), nil, nil, t.TempDir())

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r = r.WithContext(middleware.WithUser(r.Context(), model.User{ID: 2, Role: model.RoleEditor}))
	w := httptest.NewRecorder()
	h.Health(w, r)

	assert.NotContains(t, w.Body.String(), "checks")
}

func TestHealth_CacheFailureDegrades(t *testing.T) {
	h := NewHealthHandler(testutil.TestDB(t), stubPinger{err: errors.New("redis down")}, nil, t.TempDir())

	w := httptest.NewRecorder()
	h.Health(w, asAdminRequest(httptest.NewRequest(http.MethodGet, "/health", nil)))

	assert.Equal(t, http.StatusOK, w.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, StatusDegraded, status.Status)
	assert.Equal(t, "redis down", status.Checks["cache"].Message)
}

func TestHealth_DatabaseDownIs503(t *testing.T) {
	db := testutil.TestDB(t)
	require.NoError(t, db.Close())
	h := NewHealthHandler(db, nil, nil, t.TempDir())

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	h.Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "message")
}

func TestLivenessAndReadiness(t *testing.T) {
	h := NewHealthHandler(testutil.TestDB(t), nil, nil, t.TempDir())

	w := httptest.NewRecorder()
	h.Liveness(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"alive"}`, w.Body.String())

	w = httptest.NewRecorder()
	h.Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ready"}`, w.Body.String())
}

func TestAutomationStatusEndpoint(t *testing.T) {
	w := httptest.NewRecorder()
	NewHealthHandler(testutil.TestDB(t), nil, nil, t.TempDir()).
		Automation(w, httptest.NewRequest(http.MethodGet, "/health/automation", nil))
	assert.Contains(t, w.Body.String(), `"breaker":"disabled"`)

	trigger := stubAutomation{status: automation.Status{Provider: "openai", Configured: true, Breaker: "open"}}
	w = httptest.NewRecorder()
	NewHealthHandler(testutil.TestDB(t), nil, trigger, t.TempDir()).
		Automation(w, httptest.NewRequest(http.MethodGet, "/health/automation", nil))

	var s automation.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	assert.Equal(t, "openai", s.Provider)
	assert.Equal(t, "open", s.Breaker)
}

func TestCheckDiskSpace_MissingDir(t *testing.T) {
	h := NewHealthHandler(nil, nil, nil, "/nonexistent/uploads/dir")
	c := h.checkDiskSpace()
	assert.Equal(t, StatusHealthy, c.Status)
}
