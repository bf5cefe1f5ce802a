// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeAPIError(t *testing.T, rr *httptest.ResponseRecorder) APIError {
	t.Helper()
	var resp APIError
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return resp
}

func TestWriteAPIError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteAPIError(rr, http.StatusBadRequest, "validation_error", "Validation failed", []string{"title is required"})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	resp := decodeAPIError(t, rr)
	if resp.Error.Code != "validation_error" {
		t.Errorf("Code = %q, want validation_error", resp.Error.Code)
	}
	details, ok := resp.Error.Details.([]any)
	if !ok || len(details) != 1 || details[0] != "title is required" {
		t.Errorf("Details = %#v, want [title is required]", resp.Error.Details)
	}
}

func TestWriteAPIErrorOmitsEmptyDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteAPIError(rr, http.StatusUnauthorized, "unauthorized", "nope", nil)

	var raw map[string]map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["error"]["details"]; ok {
		t.Error("details should be omitted when nil")
	}
}

func TestLimiterCacheReusesLimiter(t *testing.T) {
	lc := newLimiterCache[string](1, 1)
	a := lc.get("10.0.0.1")
	b := lc.get("10.0.0.1")
	c := lc.get("10.0.0.2")

	if a != b {
		t.Error("expected the same limiter for the same key")
	}
	if a == c {
		t.Error("expected different limiters for different keys")
	}
}

func TestLimiterCacheClearIfExceeds(t *testing.T) {
	lc := newLimiterCache[int](1, 1)
	for i := 0; i < 5; i++ {
		lc.get(i)
	}

	if lc.clearIfExceeds(10) {
		t.Error("cache below the limit should not be cleared")
	}
	if !lc.clearIfExceeds(3) {
		t.Error("cache above the limit should be cleared")
	}
	if len(lc.limiters) != 0 {
		t.Errorf("len = %d after clear, want 0", len(lc.limiters))
	}
}

func TestGlobalRateLimiterMiddleware(t *testing.T) {
	rl := NewGlobalRateLimiter(0.001, 2)
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/posts", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 2; i++ {
		if rr := send("203.0.113.5"); rr.Code != http.StatusOK {
			t.Fatalf("request %d: Status = %d, want 200", i+1, rr.Code)
		}
	}

	rr := send("203.0.113.5")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("Status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if resp := decodeAPIError(t, rr); resp.Error.Code != "rate_limit_exceeded" {
		t.Errorf("Code = %q, want rate_limit_exceeded", resp.Error.Code)
	}

	if rr := send("203.0.113.6"); rr.Code != http.StatusOK {
		t.Errorf("other client: Status = %d, want 200", rr.Code)
	}
}
