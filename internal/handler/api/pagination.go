// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"strconv"
)

// Page size bounds for list endpoints.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// pagination holds the resolved page parameters of a list request.
type pagination struct {
	Page    int
	PerPage int
}

func (p pagination) limit() int64  { return int64(p.PerPage) }
func (p pagination) offset() int64 { return int64((p.Page - 1) * p.PerPage) }

// meta builds response metadata for total matching rows.
func (p pagination) meta(total int64) *Meta {
	pages := int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	return &Meta{Total: total, Page: p.Page, PerPage: p.PerPage, Pages: pages}
}

// parsePagination reads ?page= and ?per_page=. Invalid values fall back to
// the defaults; per_page is capped at MaxPerPage.
func parsePagination(r *http.Request) pagination {
	p := pagination{Page: 1, PerPage: DefaultPerPage}
	q := r.URL.Query()
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		p.Page = n
	}
	if n, err := strconv.Atoi(q.Get("per_page")); err == nil && n > 0 {
		p.PerPage = min(n, MaxPerPage)
	}
	return p
}
