// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"strings"
)

// StripTrailingSlash redirects URLs with trailing slashes to their
// non-trailing equivalents (HTTP 301). Only GET and HEAD are redirected;
// other methods pass through.
func StripTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		safe := r.Method == http.MethodGet || r.Method == http.MethodHead
		if safe && path != "/" && strings.HasSuffix(path, "/") {
			newURL := strings.TrimRight(path, "/")
			if newURL == "" || strings.HasPrefix(newURL, "//") {
				next.ServeHTTP(w, r)
				return
			}
			if r.URL.RawQuery != "" {
				newURL += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, newURL, http.StatusMovedPermanently)
			return
		}
		next.ServeHTTP(w, r)
	})
}
