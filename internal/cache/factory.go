// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds configuration for cache creation.
type Config struct {
	// Prefix namespaces Redis keys.
	Prefix string

	DefaultTTL time.Duration

	// MaxSize and CleanupInterval apply to the memory backend only.
	MaxSize         int
	CleanupInterval time.Duration
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		Prefix:          "gymsite:",
		DefaultTTL:      time.Hour,
		MaxSize:         10000,
		CleanupInterval: time.Minute,
	}
}

// New returns a Redis cache when client is non-nil and a memory cache otherwise.
func New(cfg Config, client redis.Cmdable) Cache {
	if client != nil {
		return NewRedisCache(client, cfg.Prefix, cfg.DefaultTTL)
	}
	return NewMemoryCache(MemoryCacheOptions{
		DefaultTTL:      cfg.DefaultTTL,
		MaxSize:         cfg.MaxSize,
		CleanupInterval: cfg.CleanupInterval,
	})
}
