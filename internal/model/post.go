// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Post sources.
const (
	PostSourceManual = "manual"
	PostSourceAI     = "ai"
)

// Post is a blog post. Slug is derived from Title once, at creation.
type Post struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Excerpt     string     `json:"excerpt"`
	Content     string     `json:"content"`
	Category    string     `json:"category"`
	Image       string     `json:"image"`
	Source      string     `json:"source"`
	Published   bool       `json:"published"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// IsAI reports whether the post arrived through the ingestion webhook.
func (p *Post) IsAI() bool {
	return p.Source == PostSourceAI
}

// DisplayDate is the date shown on the public site: the publish date when
// set, the creation date otherwise.
func (p *Post) DisplayDate() time.Time {
	if p.PublishedAt != nil {
		return *p.PublishedAt
	}
	return p.CreatedAt
}
