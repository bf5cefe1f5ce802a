// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/gymsite/internal/middleware"
	"github.com/olegiv/gymsite/internal/model"
	"github.com/olegiv/gymsite/internal/store"
	"github.com/olegiv/gymsite/internal/util"
	"github.com/olegiv/gymsite/internal/validation"
)

// slugAttempts bounds retries when a concurrent insert takes the same slug.
const slugAttempts = 3

// CreatePostRequest is the body of POST /posts.
type CreatePostRequest struct {
	Title       string  `json:"title" validate:"notblank,max=200"`
	Excerpt     string  `json:"excerpt" validate:"notblank,max=500"`
	Content     string  `json:"content" validate:"notblank,max=50000"`
	Category    string  `json:"category" validate:"notblank,max=100"`
	Image       string  `json:"image" validate:"omitempty,max=2048,imageref"`
	Published   bool    `json:"published"`
	PublishedAt *string `json:"publishedAt" validate:"omitnil,rfc3339"`
}

// UpdatePostRequest is the body of PATCH /posts/{slug}. Only these fields
// can change; any other key in the body is ignored. The slug never changes.
type UpdatePostRequest struct {
	Title       *string `json:"title" validate:"omitnil,notblank,max=200"`
	Excerpt     *string `json:"excerpt" validate:"omitnil,notblank,max=500"`
	Content     *string `json:"content" validate:"omitnil,notblank,max=50000"`
	Category    *string `json:"category" validate:"omitnil,notblank,max=100"`
	Image       *string `json:"image" validate:"omitnil,max=2048"`
	Published   *bool   `json:"published"`
	PublishedAt *string `json:"publishedAt" validate:"omitnil,rfc3339"`
}

// ListPosts handles GET /posts.
// Anonymous callers see published posts only; admins see everything with ?all=true.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := parsePagination(r)

	params := store.ListPostsParams{
		PublishedOnly: !(isAdmin(r) && r.URL.Query().Get("all") == "true"),
		Category:      strings.TrimSpace(r.URL.Query().Get("category")),
		Limit:         page.limit(),
		Offset:        page.offset(),
	}

	posts, err := h.queries.ListPosts(ctx, params)
	if err != nil {
		h.fail(w, r, Internal(fmt.Errorf("listing posts: %w", err)))
		return
	}
	total, err := h.queries.CountPosts(ctx, params)
	if err != nil {
		h.fail(w, r, Internal(fmt.Errorf("counting posts: %w", err)))
		return
	}
	if posts == nil {
		posts = []model.Post{}
	}

	WriteSuccess(w, posts, page.meta(total))
}

// GetPost handles GET /posts/{slug}.
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.postBySlug(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteSuccess(w, post, nil)
}

// CreatePost handles POST /posts. Manual posts start as drafts unless
// published is set.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreatePostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if msgs := h.validator.Struct(req); len(msgs) > 0 {
		h.fail(w, r, Validation(msgs))
		return
	}

	now := time.Now().UTC()
	var publishedAt sql.NullTime
	if req.Published {
		publishedAt = sql.NullTime{Time: now, Valid: true}
		if req.PublishedAt != nil {
			publishedAt.Time = mustParseRFC3339(*req.PublishedAt)
		}
	}

	var (
		post model.Post
		err  error
	)
	for range slugAttempts {
		var slug string
		slug, err = util.UniqueSlug(req.Title, "post", func(candidate string) (bool, error) {
			return h.queries.PostSlugExists(ctx, candidate)
		})
		if err != nil {
			break
		}
		post, err = h.queries.CreatePost(ctx, store.CreatePostParams{
			Title:       strings.TrimSpace(req.Title),
			Slug:        slug,
			Excerpt:     strings.TrimSpace(req.Excerpt),
			Content:     strings.TrimSpace(req.Content),
			Category:    strings.TrimSpace(req.Category),
			Image:       strings.TrimSpace(req.Image),
			Source:      model.PostSourceManual,
			Published:   req.Published,
			PublishedAt: publishedAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err == nil || !store.IsUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		h.fail(w, r, Internal(fmt.Errorf("creating post: %w", err)))
		return
	}

	h.logger.Info("post created", "post_id", post.ID, "slug", post.Slug, "user_id", middleware.GetUserID(r))
	h.onChange(ctx)
	WriteCreated(w, post)
}

// UpdatePost handles PATCH /posts/{slug}. Last write wins.
func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	existing, err := h.postBySlug(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req UpdatePostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if msgs := h.validator.Struct(req); len(msgs) > 0 {
		h.fail(w, r, Validation(msgs))
		return
	}
	if req.Image != nil && *req.Image != "" {
		if msgs := h.validator.Rules(validation.Rule{Field: "image", Value: *req.Image, Tag: "imageref"}); len(msgs) > 0 {
			h.fail(w, r, Validation(msgs))
			return
		}
	}

	now := time.Now().UTC()
	params := store.UpdatePostParams{
		ID:          existing.ID,
		Title:       existing.Title,
		Excerpt:     existing.Excerpt,
		Content:     existing.Content,
		Category:    existing.Category,
		Image:       existing.Image,
		Published:   existing.Published,
		PublishedAt: util.NullTimeFromPtr(existing.PublishedAt),
		UpdatedAt:   now,
	}
	if req.Title != nil {
		params.Title = strings.TrimSpace(*req.Title)
	}
	if req.Excerpt != nil {
		params.Excerpt = strings.TrimSpace(*req.Excerpt)
	}
	if req.Content != nil {
		params.Content = strings.TrimSpace(*req.Content)
	}
	if req.Category != nil {
		params.Category = strings.TrimSpace(*req.Category)
	}
	if req.Image != nil {
		params.Image = strings.TrimSpace(*req.Image)
	}
	if req.Published != nil {
		params.Published = *req.Published
	}
	if req.PublishedAt != nil {
		params.PublishedAt = sql.NullTime{Time: mustParseRFC3339(*req.PublishedAt), Valid: true}
	} else if params.Published && !params.PublishedAt.Valid {
		params.PublishedAt = sql.NullTime{Time: now, Valid: true}
	}

	post, err := h.queries.UpdatePost(ctx, params)
	if err != nil {
		h.fail(w, r, storeError(err, "post"))
		return
	}

	h.logger.Info("post updated", "post_id", post.ID, "slug", post.Slug, "user_id", middleware.GetUserID(r))
	h.onChange(ctx)
	WriteSuccess(w, post, nil)
}

// TogglePostPublished handles POST /posts/{slug}/publish. The first publish
// stamps publishedAt; later toggles keep it.
func (h *Handler) TogglePostPublished(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	existing, err := h.postBySlug(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	now := time.Now().UTC()
	params := store.SetPostPublishedParams{
		ID:          existing.ID,
		Published:   !existing.Published,
		PublishedAt: util.NullTimeFromPtr(existing.PublishedAt),
		UpdatedAt:   now,
	}
	if params.Published && !params.PublishedAt.Valid {
		params.PublishedAt = sql.NullTime{Time: now, Valid: true}
	}

	post, err := h.queries.SetPostPublished(ctx, params)
	if err != nil {
		h.fail(w, r, storeError(err, "post"))
		return
	}

	h.logger.Info("post publish toggled", "post_id", post.ID, "published", post.Published, "user_id", middleware.GetUserID(r))
	h.onChange(ctx)
	WriteSuccess(w, post, nil)
}

// DeletePost handles DELETE /posts/{slug}.
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	existing, err := h.postBySlug(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.queries.DeletePost(ctx, existing.ID); err != nil {
		h.fail(w, r, Internal(fmt.Errorf("deleting post: %w", err)))
		return
	}

	h.logger.Info("post deleted", "post_id", existing.ID, "slug", existing.Slug, "user_id", middleware.GetUserID(r))
	h.onChange(ctx)
	w.WriteHeader(http.StatusNoContent)
}

// postBySlug loads the {slug} post. Unpublished posts are hidden from
// non-admins.
func (h *Handler) postBySlug(r *http.Request) (model.Post, error) {
	slug := chi.URLParam(r, "slug")
	if !util.IsValidSlug(slug) {
		return model.Post{}, NotFound("post not found")
	}
	post, err := h.queries.GetPostBySlug(r.Context(), slug)
	if err != nil {
		return model.Post{}, storeError(err, "post")
	}
	if !post.Published && !isAdmin(r) {
		return model.Post{}, NotFound("post not found")
	}
	return post, nil
}

// mustParseRFC3339 parses a value already checked by the rfc3339 rule.
func mustParseRFC3339(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t.UTC()
}
