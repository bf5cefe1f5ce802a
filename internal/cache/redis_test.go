// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfNoRedis skips the test unless GYM_TEST_REDIS_URL points at a server.
func skipIfNoRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("GYM_TEST_REDIS_URL")
	if url == "" {
		t.Skip("Skipping Redis tests: GYM_TEST_REDIS_URL not set")
	}
	client, err := NewRedisClient(context.Background(), DefaultRedisOptions(url))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewRedisClient_EmptyURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), RedisOptions{})
	assert.Error(t, err)
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), DefaultRedisOptions("not-a-redis-url"))
	assert.ErrorContains(t, err, "parsing redis URL")
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	opts := DefaultRedisOptions("redis://127.0.0.1:1/0")
	opts.ConnectTimeout = 200 * time.Millisecond
	_, err := NewRedisClient(context.Background(), opts)
	assert.ErrorContains(t, err, "connecting to redis")
}

func TestRedisCache_UnreachableErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	c := NewRedisCache(client, "test:", time.Minute)
	ctx := context.Background()

	_, err := c.Get(ctx, "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
	assert.Error(t, c.Set(ctx, "k", []byte("v"), 0))
	assert.Error(t, c.Ping(ctx))

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Ping(ctx), ErrCacheClosed)
}

func TestRedisCache_Live(t *testing.T) {
	client := skipIfNoRedis(t)
	c := NewRedisCache(client, "gymsite-test:", time.Minute)
	ctx := context.Background()
	t.Cleanup(func() { _ = c.DeleteByPrefix(ctx, "") })

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "site:home", []byte("v"), 0))
	got, err := c.Get(ctx, "site:home")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))

	require.NoError(t, c.DeleteByPrefix(ctx, "site:"))
	ok, err := c.Has(ctx, "site:home")
	require.NoError(t, err)
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, BackendRedis, stats.Backend)
	assert.Equal(t, int64(1), stats.Hits)
}
