// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package ratelimit implements a per-key fixed-window request counter with
// an in-process backend and a Redis backend shared across replicas.
package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrClosed is returned by Allow after Close.
var ErrClosed = errors.New("rate limiter closed")

// Decision is the outcome of counting one request.
type Decision struct {
	Allowed bool
	// Count is the number of requests seen in the current window, including this one.
	Count int64
	Limit int64
	// ResetAt is when the current window ends and the counter restarts.
	ResetAt time.Time
}

// Remaining returns how many more requests the window admits.
func (d Decision) Remaining() int64 {
	if d.Count >= d.Limit {
		return 0
	}
	return d.Limit - d.Count
}

// RetryAfter returns the whole seconds until the window resets, at least 1.
func (d Decision) RetryAfter(now time.Time) int {
	secs := int(math.Ceil(d.ResetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter counts requests per key in fixed windows. Allow increments the
// key's counter atomically: concurrent calls never lose an update. Keys never
// share counters.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
	Close() error
}

// Config holds the window parameters shared by both backends.
type Config struct {
	Limit  int64
	Window time.Duration
}

func (c Config) validate() error {
	if c.Limit <= 0 {
		return errors.New("rate limit must be positive")
	}
	if c.Window <= 0 {
		return errors.New("rate limit window must be positive")
	}
	return nil
}
