// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/gymsite/internal/model"
)

// testDB creates a migrated database in a temporary directory.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "gymsite-test.db")
	db, err := NewDB(dbPath)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
		_ = os.Remove(dbPath)
	})

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func createTestPost(t *testing.T, q *Queries, slug string, published bool, publishedAt time.Time) model.Post {
	t.Helper()
	now := time.Now().UTC()
	p, err := q.CreatePost(context.Background(), CreatePostParams{
		Title:       "Title " + slug,
		Slug:        slug,
		Excerpt:     "excerpt",
		Content:     "content",
		Category:    "training",
		Image:       "/static/placeholder.svg",
		Source:      model.PostSourceManual,
		Published:   published,
		PublishedAt: sql.NullTime{Time: publishedAt, Valid: published},
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	require.NoError(t, err)
	return p
}

func TestMigrationVersion(t *testing.T) {
	db := testDB(t)
	v, err := MigrationVersion(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestCreateAndGetPost(t *testing.T) {
	db := testDB(t)
	q := New(db)
	ctx := context.Background()

	published := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	created := createTestPost(t, q, "morning-mobility", true, published)

	assert.NotZero(t, created.ID)
	assert.Equal(t, "morning-mobility", created.Slug)
	assert.True(t, created.Published)
	require.NotNil(t, created.PublishedAt)
	assert.True(t, created.PublishedAt.Equal(published))

	got, err := q.GetPostBySlug(ctx, "morning-mobility")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, model.PostSourceManual, got.Source)

	_, err = q.GetPostBySlug(ctx, "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestCreatePost_DuplicateSlug(t *testing.T) {
	db := testDB(t)
	q := New(db)

	createTestPost(t, q, "dup", false, time.Time{})

	now := time.Now().UTC()
	_, err := q.CreatePost(context.Background(), CreatePostParams{
		Title: "Dup", Slug: "dup", Source: model.PostSourceManual, CreatedAt: now, UpdatedAt: now,
	})
	assert.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsUniqueViolation(nil))
}

func TestListPosts_FilterAndOrder(t *testing.T) {
	db := testDB(t)
	q := New(db)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	createTestPost(t, q, "older", true, base)
	createTestPost(t, q, "newer", true, base.Add(48*time.Hour))
	createTestPost(t, q, "draft", false, time.Time{})

	public, err := q.ListPosts(ctx, ListPostsParams{PublishedOnly: true, Limit: 10})
	require.NoError(t, err)
	require.Len(t, public, 2)
	assert.Equal(t, "newer", public[0].Slug)
	assert.Equal(t, "older", public[1].Slug)

	all, err := q.ListPosts(ctx, ListPostsParams{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	n, err := q.CountPosts(ctx, ListPostsParams{PublishedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	none, err := q.ListPosts(ctx, ListPostsParams{Category: "nutrition", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, none)

	paged, err := q.ListPosts(ctx, ListPostsParams{PublishedOnly: true, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "older", paged[0].Slug)
}

func TestUpdatePost_KeepsSlug(t *testing.T) {
	db := testDB(t)
	q := New(db)
	ctx := context.Background()

	p := createTestPost(t, q, "original-slug", false, time.Time{})

	updated, err := q.UpdatePost(ctx, UpdatePostParams{
		ID:        p.ID,
		Title:     "A Completely New Title",
		Excerpt:   p.Excerpt,
		Content:   "new content",
		Category:  p.Category,
		Image:     p.Image,
		Published: true,
		PublishedAt: sql.NullTime{
			Time: time.Now().UTC(), Valid: true,
		},
		UpdatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, "original-slug", updated.Slug)
	assert.Equal(t, "A Completely New Title", updated.Title)
	assert.True(t, updated.Published)
}

func TestSetPostPublishedAndDelete(t *testing.T) {
	db := testDB(t)
	q := New(db)
	ctx := context.Background()

	p := createTestPost(t, q, "toggle-me", false, time.Time{})

	now := time.Now().UTC()
	got, err := q.SetPostPublished(ctx, SetPostPublishedParams{
		ID: p.ID, Published: true, PublishedAt: sql.NullTime{Time: now, Valid: true}, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.True(t, got.Published)

	exists, err := q.PostSlugExists(ctx, "toggle-me")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, q.DeletePost(ctx, p.ID))

	exists, err = q.PostSlugExists(ctx, "toggle-me")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEvents(t *testing.T) {
	db := testDB(t)
	q := New(db)
	ctx := context.Background()
	now := time.Now().UTC()

	mk := func(title, date, tm, status string) model.Event {
		e, err := q.CreateEvent(ctx, CreateEventParams{
			Title: title, Date: date, Time: tm, Location: "Main hall",
			Status: status, CreatedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)
		return e
	}

	late := mk("Late class", "2026-06-01", "19:00", model.EventStatusActive)
	mk("Early class", "2026-06-01", "07:00", model.EventStatusActive)
	hidden := mk("Cancelled", "2026-05-01", "10:00", model.EventStatusInactive)

	active, err := q.ListEvents(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "Early class", active[0].Title)
	assert.Equal(t, "Late class", active[1].Title)

	all, err := q.ListEvents(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, hidden.ID, all[0].ID)

	toggled, err := q.SetEventStatus(ctx, SetEventStatusParams{ID: late.ID, Status: model.EventStatusInactive, UpdatedAt: now})
	require.NoError(t, err)
	assert.False(t, toggled.IsActive())

	late.Location = "Studio B"
	updated, err := q.UpdateEvent(ctx, UpdateEventParams{
		ID: late.ID, Title: late.Title, Date: late.Date, Time: late.Time, Location: late.Location,
		Status: model.EventStatusActive, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, "Studio B", updated.Location)

	require.NoError(t, q.DeleteEvent(ctx, late.ID))
	_, err = q.GetEventByID(ctx, late.ID)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestSettingsUpsert(t *testing.T) {
	db := testDB(t)
	q := New(db)
	ctx := context.Background()

	empty, err := q.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", empty.GymName)

	_, err = q.UpsertSettings(ctx, UpsertSettingsParams{GymName: "Iron Temple", Phone: "+1 555 0100", UpdatedAt: time.Now().UTC()})
	require.NoError(t, err)
	s, err := q.UpsertSettings(ctx, UpsertSettingsParams{GymName: "Iron Temple 2", Instagram: "@irontemple", UpdatedAt: time.Now().UTC()})
	require.NoError(t, err)

	assert.Equal(t, "Iron Temple 2", s.GymName)
	assert.Equal(t, "@irontemple", s.Instagram)
	assert.Equal(t, "", s.Phone)

	var rows int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM settings").Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestAutomationSettings(t *testing.T) {
	db := testDB(t)
	q := New(db)
	ctx := context.Background()

	def, err := q.GetAutomationSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultFrequencyDays, def.FrequencyDays)
	assert.Empty(t, def.Topics)
	assert.Nil(t, def.LastRun)

	saved, err := q.UpsertAutomationSettings(ctx, UpsertAutomationSettingsParams{
		Enabled: true, FrequencyDays: 3, Topics: []string{"hiit", "nutrition"},
		TargetCategory: "training", UpdatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.True(t, saved.Enabled)
	assert.Equal(t, []string{"hiit", "nutrition"}, saved.Topics)

	last := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, q.MarkAutomationRun(ctx, MarkAutomationRunParams{LastRun: last, NextRun: last.AddDate(0, 0, 3)}))

	got, err := q.GetAutomationSettings(ctx)
	require.NoError(t, err)
	require.NotNil(t, got.LastRun)
	require.NotNil(t, got.NextRun)
	assert.True(t, got.LastRun.Equal(last))
	assert.True(t, got.NextRun.Equal(last.AddDate(0, 0, 3)))
	assert.Equal(t, 3, got.FrequencyDays)
}

func TestMarkAutomationRun_WithoutRow(t *testing.T) {
	db := testDB(t)
	q := New(db)
	ctx := context.Background()

	last := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, q.MarkAutomationRun(ctx, MarkAutomationRunParams{LastRun: last, NextRun: last.AddDate(0, 0, 7)}))

	got, err := q.GetAutomationSettings(ctx)
	require.NoError(t, err)
	require.NotNil(t, got.LastRun)
	assert.False(t, got.Enabled)
}

func TestUsersAndSeed(t *testing.T) {
	db := testDB(t)
	q := New(db)
	ctx := context.Background()

	require.NoError(t, SeedAdmin(ctx, db, "", ""))
	n, err := q.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	assert.Error(t, SeedAdmin(ctx, db, "owner@example.com", "short"))

	require.NoError(t, SeedAdmin(ctx, db, "owner@example.com", "a-strong-password"))
	u, err := q.GetUserByEmail(ctx, "OWNER@example.com")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin())

	// Second run is a no-op.
	require.NoError(t, SeedAdmin(ctx, db, "other@example.com", "a-strong-password"))
	n, err = q.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, q.UpdateUserLastLogin(ctx, UpdateUserLastLoginParams{
		ID: u.ID, LastLoginAt: sql.NullTime{Time: time.Now().UTC(), Valid: true},
	}))
	byID, err := q.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, byID.LastLoginAt.Valid)
}

func TestLogEntries(t *testing.T) {
	db := testDB(t)
	q := New(db)
	ctx := context.Background()

	old := time.Now().UTC().Add(-60 * 24 * time.Hour)
	require.NoError(t, q.CreateLogEntry(ctx, CreateLogEntryParams{
		Level: model.LogLevelWarning, Category: model.LogCategoryIngestion, Message: "old", Metadata: "{}", CreatedAt: old,
	}))
	require.NoError(t, q.CreateLogEntry(ctx, CreateLogEntryParams{
		Level: model.LogLevelError, Category: model.LogCategorySystem, Message: "new", Metadata: "{}", CreatedAt: time.Now().UTC(),
	}))

	ingestion, err := q.ListLogEntries(ctx, model.LogCategoryIngestion, 10)
	require.NoError(t, err)
	require.Len(t, ingestion, 1)
	assert.Equal(t, "old", ingestion[0].Message)

	removed, err := q.DeleteLogEntriesBefore(ctx, time.Now().UTC().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	all, err := q.ListLogEntries(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUploads(t *testing.T) {
	db := testDB(t)
	q := New(db)
	ctx := context.Background()

	u, err := q.CreateUpload(ctx, CreateUploadParams{
		UUID: "7d4c", Filename: "rack.jpg", MimeType: "image/jpeg", Size: 1024,
		Width: 800, Height: 600, URL: "/uploads/7d4c/rack.jpg", CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	got, err := q.GetUploadByUUID(ctx, "7d4c")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, 800, got.Width)
}
