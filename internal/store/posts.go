// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/olegiv/gymsite/internal/model"
	"github.com/olegiv/gymsite/internal/util"
)

const postColumns = `id, title, slug, excerpt, content, category, image, source,
	published, published_at, created_at, updated_at`

func scanPost(row rowScanner) (model.Post, error) {
	var (
		p           model.Post
		publishedAt sql.NullTime
	)
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Slug,
		&p.Excerpt,
		&p.Content,
		&p.Category,
		&p.Image,
		&p.Source,
		&p.Published,
		&publishedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	p.PublishedAt = util.TimePtr(publishedAt)
	return p, err
}

// ListPostsParams filters and pages ListPosts.
type ListPostsParams struct {
	PublishedOnly bool
	Category      string
	Limit         int64
	Offset        int64
}

const listPosts = `SELECT ` + postColumns + ` FROM posts
WHERE (?1 = 0 OR published = 1)
  AND (?2 = '' OR category = ?2)
ORDER BY published_at DESC, created_at DESC, id DESC
LIMIT ?3 OFFSET ?4`

// ListPosts returns posts newest first.
func (q *Queries) ListPosts(ctx context.Context, arg ListPostsParams) ([]model.Post, error) {
	rows, err := q.db.QueryContext(ctx, listPosts, arg.PublishedOnly, arg.Category, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []model.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countPosts = `SELECT COUNT(*) FROM posts
WHERE (?1 = 0 OR published = 1)
  AND (?2 = '' OR category = ?2)`

// CountPosts counts the posts matching the ListPosts filter, ignoring paging.
func (q *Queries) CountPosts(ctx context.Context, arg ListPostsParams) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countPosts, arg.PublishedOnly, arg.Category).Scan(&n)
	return n, err
}

const getPostBySlug = `SELECT ` + postColumns + ` FROM posts WHERE slug = ?`

// GetPostBySlug returns sql.ErrNoRows when no post has the slug.
func (q *Queries) GetPostBySlug(ctx context.Context, slug string) (model.Post, error) {
	return scanPost(q.db.QueryRowContext(ctx, getPostBySlug, slug))
}

const postSlugExists = `SELECT EXISTS(SELECT 1 FROM posts WHERE slug = ?)`

// PostSlugExists reports whether a post already uses slug.
func (q *Queries) PostSlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, postSlugExists, slug).Scan(&exists)
	return exists, err
}

// CreatePostParams holds the columns of a new post.
type CreatePostParams struct {
	Title       string
	Slug        string
	Excerpt     string
	Content     string
	Category    string
	Image       string
	Source      string
	Published   bool
	PublishedAt sql.NullTime
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const createPost = `INSERT INTO posts (
	title, slug, excerpt, content, category, image, source,
	published, published_at, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + postColumns

func (q *Queries) CreatePost(ctx context.Context, arg CreatePostParams) (model.Post, error) {
	row := q.db.QueryRowContext(ctx, createPost,
		arg.Title,
		arg.Slug,
		arg.Excerpt,
		arg.Content,
		arg.Category,
		arg.Image,
		arg.Source,
		arg.Published,
		arg.PublishedAt,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return scanPost(row)
}

// UpdatePostParams holds the editable columns of a post. The slug is not
// editable.
type UpdatePostParams struct {
	ID          int64
	Title       string
	Excerpt     string
	Content     string
	Category    string
	Image       string
	Published   bool
	PublishedAt sql.NullTime
	UpdatedAt   time.Time
}

const updatePost = `UPDATE posts SET
	title = ?, excerpt = ?, content = ?, category = ?, image = ?,
	published = ?, published_at = ?, updated_at = ?
WHERE id = ?
RETURNING ` + postColumns

func (q *Queries) UpdatePost(ctx context.Context, arg UpdatePostParams) (model.Post, error) {
	row := q.db.QueryRowContext(ctx, updatePost,
		arg.Title,
		arg.Excerpt,
		arg.Content,
		arg.Category,
		arg.Image,
		arg.Published,
		arg.PublishedAt,
		arg.UpdatedAt,
		arg.ID,
	)
	return scanPost(row)
}

type SetPostPublishedParams struct {
	ID          int64
	Published   bool
	PublishedAt sql.NullTime
	UpdatedAt   time.Time
}

const setPostPublished = `UPDATE posts SET published = ?, published_at = ?, updated_at = ?
WHERE id = ?
RETURNING ` + postColumns

func (q *Queries) SetPostPublished(ctx context.Context, arg SetPostPublishedParams) (model.Post, error) {
	row := q.db.QueryRowContext(ctx, setPostPublished, arg.Published, arg.PublishedAt, arg.UpdatedAt, arg.ID)
	return scanPost(row)
}

const deletePost = `DELETE FROM posts WHERE id = ?`

func (q *Queries) DeletePost(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deletePost, id)
	return err
}
