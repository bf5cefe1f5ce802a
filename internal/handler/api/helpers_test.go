// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/gymsite/internal/middleware"
	"github.com/olegiv/gymsite/internal/model"
	"github.com/olegiv/gymsite/internal/store"
	"github.com/olegiv/gymsite/internal/testutil"
)

// changeCounter counts ChangeHook calls.
type changeCounter struct{ n int }

func (c *changeCounter) hook(context.Context) { c.n++ }

// testSetup creates a migrated database and a handler over it.
func testSetup(t *testing.T, opts ...Option) (*sql.DB, *Handler, *changeCounter) {
	t.Helper()
	db := testutil.TestDB(t)
	changes := &changeCounter{}
	return db, NewHandler(db, testutil.DiscardLogger(), changes.hook, opts...), changes
}

var testAdmin = model.User{ID: 1, Email: "admin@example.com", Role: model.RoleAdmin, Name: "Admin"}

// asAdmin attaches an admin user to the request context.
func asAdmin(r *http.Request) *http.Request {
	return r.WithContext(middleware.WithUser(r.Context(), testAdmin))
}

func requestWithURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func newJSONRequest(t *testing.T, method, path, body string, params map[string]string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if len(params) > 0 {
		req = requestWithURLParams(req, params)
	}
	return req
}

func newGetRequest(t *testing.T, path string, params map[string]string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if len(params) > 0 {
		req = requestWithURLParams(req, params)
	}
	return req
}

// dataResponse is a generic wrapper for API responses with data field.
type dataResponse[T any] struct {
	Data T `json:"data"`
}

// listResponse is a generic wrapper for API list responses with data and meta.
type listResponse[T any] struct {
	Data []T   `json:"data"`
	Meta *Meta `json:"meta"`
}

func unmarshalData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var resp dataResponse[T]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v (%s)", err, w.Body.String())
	}
	return resp.Data
}

func unmarshalList[T any](t *testing.T, w *httptest.ResponseRecorder) ([]T, *Meta) {
	t.Helper()
	var resp listResponse[T]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v (%s)", err, w.Body.String())
	}
	return resp.Data, resp.Meta
}

// errorEnvelope mirrors ErrorResponse with string-list details.
type errorEnvelope struct {
	Error struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func unmarshalError(t *testing.T, w *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var resp errorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error: %v (%s)", err, w.Body.String())
	}
	return resp
}

func executeHandler(t *testing.T, handler func(http.ResponseWriter, *http.Request), req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func createTestPost(t *testing.T, db *sql.DB, title, slug string, published bool) model.Post {
	t.Helper()
	now := time.Now().UTC()
	params := store.CreatePostParams{
		Title:     title,
		Slug:      slug,
		Excerpt:   "excerpt",
		Content:   "content",
		Category:  "Training",
		Source:    model.PostSourceManual,
		Published: published,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if published {
		params.PublishedAt = sql.NullTime{Time: now, Valid: true}
	}
	post, err := store.New(db).CreatePost(context.Background(), params)
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	return post
}

func createTestEvent(t *testing.T, db *sql.DB, title, date, status string) model.Event {
	t.Helper()
	now := time.Now().UTC()
	event, err := store.New(db).CreateEvent(context.Background(), store.CreateEventParams{
		Title:     title,
		Date:      date,
		Time:      "18:00",
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	return event
}
