// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package sitecache keeps the public site's page data in the cache backend.
//
// The landing page reads a single snapshot (settings, latest published posts,
// active events). Blog pages are cached per slug. Writes invalidate both, and
// a periodic refresh rebuilds the snapshot ahead of readers.
package sitecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/olegiv/gymsite/internal/cache"
	"github.com/olegiv/gymsite/internal/model"
	"github.com/olegiv/gymsite/internal/store"
)

// Defaults for New.
const (
	DefaultTTL  = 10 * time.Minute
	DefaultSize = 6
)

const (
	// sitemapLimit caps the posts listed in the sitemap.
	sitemapLimit = 50000
	// rebuildTimeout bounds a shared rebuild, which outlives its first caller.
	rebuildTimeout = 10 * time.Second
)

const (
	keyPrefix  = "site:"
	homeKey    = keyPrefix + "home"
	postPrefix = keyPrefix + "post:"
)

// ErrNotFound is returned by Post for unknown or unpublished slugs.
var ErrNotFound = errors.New("post not found")

// Snapshot is the data behind the landing page.
type Snapshot struct {
	Settings model.Settings `json:"settings"`
	Posts    []model.Post   `json:"posts"`
	Events   []model.Event  `json:"events"`
	BuiltAt  time.Time      `json:"builtAt"`

	// Degraded is set when the store could not be read.
	Degraded bool `json:"-"`
}

// prefixDeleter is implemented by both cache backends.
type prefixDeleter interface {
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// Site serves cached page data.
type Site struct {
	queries     *store.Queries
	backend     cache.Cache
	home        *cache.TypedCache[Snapshot]
	posts       *cache.TypedCache[model.Post]
	postsOnHome int
	group       singleflight.Group
	logger      *slog.Logger
	now         func() time.Time

	// generation is bumped by Invalidate. Data read under an older
	// generation is returned but not cached.
	generation atomic.Uint64
	// afterLoad runs between the store reads and the cache write (tests).
	afterLoad func()
}

// New creates a Site over db and backend. postsOnHome <= 0 uses DefaultSize.
func New(db *sql.DB, backend cache.Cache, postsOnHome int, logger *slog.Logger) *Site {
	if postsOnHome <= 0 {
		postsOnHome = DefaultSize
	}
	return &Site{
		queries:     store.New(db),
		backend:     backend,
		home:        cache.NewTypedCache[Snapshot](backend, DefaultTTL),
		posts:       cache.NewTypedCache[model.Post](backend, DefaultTTL),
		postsOnHome: postsOnHome,
		logger:      logger.With("category", model.LogCategoryContent),
		now:         time.Now,
	}
}

// Home returns the landing page snapshot. It never fails: when the store is
// unreachable it returns default settings with empty lists.
func (s *Site) Home(ctx context.Context) Snapshot {
	snap, ok, err := s.home.Get(ctx, homeKey)
	if err != nil {
		s.logger.Warn("site cache read failed", "key", homeKey, "error", err)
	}
	if ok {
		return *snap
	}

	v, err, _ := s.group.Do(homeKey, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rebuildTimeout)
		defer cancel()
		return s.rebuild(rctx)
	})
	if err != nil {
		s.logger.Error("building site snapshot failed", "error", err)
		return Snapshot{Posts: []model.Post{}, Events: []model.Event{}, BuiltAt: s.now().UTC(), Degraded: true}
	}
	return *(v.(*Snapshot))
}

// Post returns a published post by slug.
func (s *Site) Post(ctx context.Context, slug string) (model.Post, error) {
	key := postPrefix + slug
	if p, ok, _ := s.posts.Get(ctx, key); ok {
		return *p, nil
	}

	gen := s.generation.Load()
	p, err := s.queries.GetPostBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Post{}, ErrNotFound
		}
		return model.Post{}, fmt.Errorf("loading post %q: %w", slug, err)
	}
	if !p.Published {
		return model.Post{}, ErrNotFound
	}
	if s.generation.Load() != gen {
		return p, nil
	}
	if err := s.posts.Set(ctx, key, &p); err != nil {
		s.logger.Warn("site cache write failed", "key", key, "error", err)
	}
	return p, nil
}

// Published lists every published post, newest first, for the sitemap.
// Content is omitted.
func (s *Site) Published(ctx context.Context) ([]model.Post, error) {
	posts, err := s.queries.ListPosts(ctx, store.ListPostsParams{
		PublishedOnly: true,
		Limit:         sitemapLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing published posts: %w", err)
	}
	for i := range posts {
		posts[i].Content = ""
	}
	return posts, nil
}

// Refresh rebuilds and stores the landing page snapshot.
func (s *Site) Refresh(ctx context.Context) error {
	_, err := s.rebuild(ctx)
	return err
}

// Invalidate drops every cached page. Errors are logged, not returned, so
// that write paths never fail on cache trouble.
func (s *Site) Invalidate(ctx context.Context) {
	s.generation.Add(1)
	if err := s.backend.Delete(ctx, homeKey); err != nil {
		s.logger.Warn("site cache invalidation failed", "key", homeKey, "error", err)
	}
	if pd, ok := s.backend.(prefixDeleter); ok {
		if err := pd.DeleteByPrefix(ctx, postPrefix); err != nil {
			s.logger.Warn("site cache invalidation failed", "prefix", postPrefix, "error", err)
		}
	}
}

// Ping reports the cache backend health.
func (s *Site) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

func (s *Site) rebuild(ctx context.Context) (*Snapshot, error) {
	gen := s.generation.Load()
	settings, err := s.queries.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	posts, err := s.queries.ListPosts(ctx, store.ListPostsParams{
		PublishedOnly: true,
		Limit:         int64(s.postsOnHome),
	})
	if err != nil {
		return nil, fmt.Errorf("loading posts: %w", err)
	}
	events, err := s.queries.ListEvents(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}
	if posts == nil {
		posts = []model.Post{}
	}
	if events == nil {
		events = []model.Event{}
	}

	snap := &Snapshot{
		Settings: settings,
		Posts:    posts,
		Events:   events,
		BuiltAt:  s.now().UTC(),
	}
	if s.afterLoad != nil {
		s.afterLoad()
	}
	if s.generation.Load() != gen {
		s.logger.Debug("site snapshot superseded by a write, not cached")
		return snap, nil
	}
	if err := s.home.Set(ctx, homeKey, snap); err != nil {
		s.logger.Warn("site cache write failed", "key", homeKey, "error", err)
	}
	return snap, nil
}
