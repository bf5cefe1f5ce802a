// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/gymsite/internal/content"
	"github.com/olegiv/gymsite/internal/model"
	"github.com/olegiv/gymsite/internal/seo"
	"github.com/olegiv/gymsite/internal/sitecache"
)

// Page template names under the templates directory.
const (
	pageHome     = "home.html"
	pagePost     = "post.html"
	pageNotFound = "notfound.html"
)

// SiteSource supplies cached public page data.
type SiteSource interface {
	Home(ctx context.Context) sitecache.Snapshot
	Post(ctx context.Context, slug string) (model.Post, error)
	Published(ctx context.Context) ([]model.Post, error)
}

// SiteOptions configures the crawler-facing output.
type SiteOptions struct {
	BaseURL string // absolute public URL used in canonical links and the sitemap
	NoIndex bool   // ask crawlers to stay away (non-production)
}

// SiteHandler renders the public landing page and blog posts.
type SiteHandler struct {
	site   SiteSource
	pages  map[string]*template.Template
	opts   SiteOptions
	logger *slog.Logger
	now    func() time.Time
}

type homeView struct {
	sitecache.Snapshot
	Meta   *seo.Meta
	Schema template.JS
	Year   int
}

type postView struct {
	Settings model.Settings
	Post     model.Post
	Meta     *seo.Meta
	Schema   template.JS
	Year     int
}

// NewSiteHandler parses layout.html plus each page from templates.
func NewSiteHandler(site SiteSource, templates fs.FS, opts SiteOptions, logger *slog.Logger) (*SiteHandler, error) {
	templates, err := fs.Sub(templates, "templates")
	if err != nil {
		return nil, err
	}

	base, err := template.New("").Funcs(templateFuncs()).ParseFS(templates, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("parsing layout: %w", err)
	}

	pages := make(map[string]*template.Template)
	for _, name := range []string{pageHome, pagePost, pageNotFound} {
		t, err := template.Must(base.Clone()).ParseFS(templates, name)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		pages[name] = t
	}

	return &SiteHandler{
		site:   site,
		pages:  pages,
		opts:   opts,
		logger: logger.With("category", model.LogCategoryContent),
		now:    time.Now,
	}, nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"markdown":     content.Markdown,
		"summary":      content.Summary,
		"isoDate":      func(t time.Time) string { return t.Format("2006-01-02") },
		"displayDate":  func(t time.Time) string { return t.Format("January 2, 2006") },
		"instagramURL": instagramURL,
	}
}

func instagramURL(handle string) string {
	if handle == "" {
		return ""
	}
	return "https://www.instagram.com/" + strings.TrimPrefix(handle, "@") + "/"
}

// Home handles GET /.
func (h *SiteHandler) Home(w http.ResponseWriter, r *http.Request) {
	snap := h.site.Home(r.Context())
	meta := h.seoSite(snap.Settings)
	h.render(w, http.StatusOK, pageHome, &homeView{
		Snapshot: snap,
		Meta:     seo.HomeMeta(meta),
		Schema:   seo.BuildGymSchema(snap.Settings, meta, instagramURL(snap.Settings.Instagram)),
		Year:     h.now().Year(),
	})
}

// Post handles GET /blog/{slug}.
func (h *SiteHandler) Post(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := chi.URLParam(r, "slug")
	settings := h.site.Home(ctx).Settings

	post, err := h.site.Post(ctx, slug)
	if err != nil {
		if !errors.Is(err, sitecache.ErrNotFound) {
			h.logger.Error("loading post failed", "slug", slug, "error", err)
		}
		h.renderNotFound(w, settings)
		return
	}

	meta := h.seoSite(settings)
	h.render(w, http.StatusOK, pagePost, &postView{
		Settings: settings,
		Post:     post,
		Meta:     seo.PostMeta(&post, meta),
		Schema:   seo.BuildArticleSchema(&post, meta),
		Year:     h.now().Year(),
	})
}

// Sitemap handles GET /sitemap.xml.
func (h *SiteHandler) Sitemap(w http.ResponseWriter, r *http.Request) {
	posts, err := h.site.Published(r.Context())
	if err != nil {
		h.logger.Error("listing posts for sitemap failed", "error", err)
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	b := seo.NewSitemapBuilder(h.opts.BaseURL)
	var latest time.Time
	for _, p := range posts {
		if p.UpdatedAt.After(latest) {
			latest = p.UpdatedAt
		}
	}
	b.AddHomepage(latest)
	for _, p := range posts {
		b.AddPost(seo.SitemapPost{Slug: p.Slug, UpdatedAt: p.UpdatedAt})
	}

	out, err := b.Build()
	if err != nil {
		h.logger.Error("building sitemap failed", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = w.Write(out)
}

// Robots handles GET /robots.txt.
func (h *SiteHandler) Robots(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(seo.GenerateRobots(h.opts.BaseURL, h.opts.NoIndex)))
}

func (h *SiteHandler) seoSite(settings model.Settings) *seo.Site {
	return seo.SiteFromSettings(settings, h.opts.BaseURL, h.opts.NoIndex)
}

// NotFound renders the site's 404 page.
func (h *SiteHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderNotFound(w, h.site.Home(r.Context()).Settings)
}

func (h *SiteHandler) renderNotFound(w http.ResponseWriter, settings model.Settings) {
	h.render(w, http.StatusNotFound, pageNotFound, &postView{Settings: settings, Year: h.now().Year()})
}

// render executes into a buffer so a template error never sends a partial page.
func (h *SiteHandler) render(w http.ResponseWriter, status int, page string, data any) {
	var buf bytes.Buffer
	if err := h.pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		h.logger.Error("rendering page failed", "page", page, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
