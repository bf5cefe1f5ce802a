// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package ingest receives posts generated by the external automation tool.
// Every request runs the same pipeline: identify the client, authenticate,
// rate limit, validate, verify the signature and persist.
package ingest

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/olegiv/gymsite/internal/automation"
	"github.com/olegiv/gymsite/internal/config"
	"github.com/olegiv/gymsite/internal/content"
	"github.com/olegiv/gymsite/internal/model"
	"github.com/olegiv/gymsite/internal/store"
	"github.com/olegiv/gymsite/internal/util"
	"github.com/olegiv/gymsite/internal/validation"
)

// slugAttempts bounds retries when a concurrent insert takes the same slug.
const slugAttempts = 3

// Payload is a validated candidate post.
type Payload struct {
	Title       string
	Excerpt     string
	Content     string
	Category    string
	Image       string
	Published   *bool
	PublishedAt *time.Time
}

// Service validates and persists ingested posts.
type Service struct {
	db        *sql.DB
	queries   *store.Queries
	cfg       config.IngestConfig
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
	onCreate  func(ctx context.Context)
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// OnCreate registers a hook run after every stored post.
func OnCreate(fn func(ctx context.Context)) ServiceOption {
	return func(s *Service) { s.onCreate = fn }
}

// NewService creates a Service.
func NewService(db *sql.DB, cfg config.IngestConfig, logger *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		db:        db,
		queries:   store.New(db),
		cfg:       cfg,
		validator: validation.New(),
		logger:    logger.With("category", model.LogCategoryIngestion),
		now:       time.Now,
		onCreate:  func(context.Context) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Decode parses and validates a raw JSON body. It returns a Payload, or a
// list of field messages ordered title, excerpt, content, category, image,
// published, publishedAt. A body that is not a JSON object yields a single
// message.
func (s *Service) Decode(body []byte) (Payload, []string) {
	var fields map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return Payload{}, []string{"request body must be a JSON object"}
	}
	if dec.More() {
		return Payload{}, []string{"request body must contain a single JSON object"}
	}

	r := fieldReader{fields: fields}
	p := Payload{
		Title:    strings.TrimSpace(r.str("title")),
		Excerpt:  strings.TrimSpace(r.str("excerpt")),
		Content:  strings.TrimSpace(r.str("content")),
		Category: strings.TrimSpace(r.str("category")),
		Image:    strings.TrimSpace(r.str("image")),
	}
	p.Published = r.boolPtr("published")
	publishedAt := strings.TrimSpace(r.str("publishedAt"))

	msgs := s.check("title", p.Title, r, fmt.Sprintf("notblank,max=%d", s.cfg.MaxTitle))
	msgs = append(msgs, s.check("excerpt", p.Excerpt, r, fmt.Sprintf("notblank,max=%d", s.cfg.MaxExcerpt))...)
	msgs = append(msgs, s.check("content", p.Content, r, fmt.Sprintf("notblank,max=%d", s.cfg.MaxContent))...)
	msgs = append(msgs, s.check("category", p.Category, r, fmt.Sprintf("notblank,max=%d", s.cfg.MaxCategory))...)
	msgs = append(msgs, s.check("image", p.Image, r, "omitempty,httpurl")...)
	if m, bad := r.typeErrors["published"]; bad {
		msgs = append(msgs, m)
	}
	msgs = append(msgs, s.check("publishedAt", publishedAt, r, "omitempty,rfc3339")...)

	if len(msgs) > 0 {
		return Payload{}, msgs
	}

	if publishedAt != "" {
		t, _ := time.Parse(time.RFC3339, publishedAt)
		t = t.UTC()
		p.PublishedAt = &t
	}
	return p, nil
}

// check reports a type error for field if there was one, else runs tag.
func (s *Service) check(field, value string, r fieldReader, tag string) []string {
	if m, bad := r.typeErrors[field]; bad {
		return []string{m}
	}
	return s.validator.Rules(validation.Rule{Field: field, Value: value, Tag: tag})
}

// Persist stores p as an AI post.
func (s *Service) Persist(ctx context.Context, p Payload) (model.Post, error) {
	now := s.now().UTC()

	published := true
	if p.Published != nil {
		published = *p.Published
	}
	var publishedAt sql.NullTime
	if published {
		publishedAt = sql.NullTime{Time: now, Valid: true}
		if p.PublishedAt != nil {
			publishedAt.Time = *p.PublishedAt
		}
	}
	image := p.Image
	if image == "" {
		image = s.cfg.PlaceholderImg
	}

	var lastErr error
	for attempt := 0; attempt < slugAttempts; attempt++ {
		slug, err := util.UniqueSlug(p.Title, "post", func(candidate string) (bool, error) {
			return s.queries.PostSlugExists(ctx, candidate)
		})
		if err != nil {
			return model.Post{}, fmt.Errorf("deriving slug: %w", err)
		}

		post, err := s.queries.CreatePost(ctx, store.CreatePostParams{
			Title:       p.Title,
			Slug:        slug,
			Excerpt:     p.Excerpt,
			Content:     p.Content,
			Category:    p.Category,
			Image:       image,
			Source:      model.PostSourceAI,
			Published:   published,
			PublishedAt: publishedAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err == nil {
			s.onCreate(ctx)
			return post, nil
		}
		if !store.IsUniqueViolation(err) {
			return model.Post{}, fmt.Errorf("creating post: %w", err)
		}
		lastErr = err
	}
	return model.Post{}, fmt.Errorf("creating post: slug kept colliding: %w", lastErr)
}

// StoreDraft validates a generated draft with the ingestion rules and
// stores it unpublished. A missing excerpt is derived from the content and
// overlong fields are cut to their limits.
func (s *Service) StoreDraft(ctx context.Context, d automation.Draft) (model.Post, error) {
	if strings.TrimSpace(d.Excerpt) == "" {
		d.Excerpt = content.Summary(d.Content, min(s.cfg.MaxExcerpt, 240))
	}
	if strings.TrimSpace(d.Category) == "" {
		d.Category = "General"
	}

	body, err := json.Marshal(map[string]any{
		"title":     truncateRunes(d.Title, s.cfg.MaxTitle),
		"excerpt":   truncateRunes(d.Excerpt, s.cfg.MaxExcerpt),
		"content":   truncateRunes(d.Content, s.cfg.MaxContent),
		"category":  truncateRunes(d.Category, s.cfg.MaxCategory),
		"image":     d.Image,
		"published": false,
	})
	if err != nil {
		return model.Post{}, fmt.Errorf("encoding draft: %w", err)
	}

	p, msgs := s.Decode(body)
	if len(msgs) > 0 {
		return model.Post{}, &DraftError{Messages: msgs}
	}

	post, err := s.Persist(ctx, p)
	if err != nil {
		return model.Post{}, err
	}
	s.logger.Info("ingestion success", "stage", StageSuccess, "client_ip", "internal", "post_id", post.ID, "slug", post.Slug)
	return post, nil
}

// DraftError lists why a generated draft was rejected.
type DraftError struct {
	Messages []string
}

func (e *DraftError) Error() string {
	return "generated draft is invalid: " + strings.Join(e.Messages, "; ")
}

// IsDraftError reports whether err is a *DraftError.
func IsDraftError(err error) bool {
	var de *DraftError
	return errors.As(err, &de)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// fieldReader extracts typed values from a JSON object and records one
// type error per field.
type fieldReader struct {
	fields     map[string]json.RawMessage
	typeErrors map[string]string
}

func (r *fieldReader) fail(name, msg string) {
	if r.typeErrors == nil {
		r.typeErrors = make(map[string]string)
	}
	r.typeErrors[name] = msg
}

func (r *fieldReader) str(name string) string {
	raw, ok := r.fields[name]
	if !ok || string(raw) == "null" {
		return ""
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		r.fail(name, name+" must be a string")
		return ""
	}
	return v
}

func (r *fieldReader) boolPtr(name string) *bool {
	raw, ok := r.fields[name]
	if !ok || string(raw) == "null" {
		return nil
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		r.fail(name, name+" must be a boolean")
		return nil
	}
	return &v
}
