// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWindow increments the counter and starts the window on first hit.
// Returns {count, remaining ttl in ms}.
var incrWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// RedisLimiter keeps fixed-window counters in Redis so that every replica
// shares them. The window starts at a key's first request.
type RedisLimiter struct {
	cfg    Config
	client redis.Scripter
	prefix string
	now    func() time.Time
	closed atomic.Bool
}

// NewRedis creates a limiter over client. Keys are stored as prefix+"rl:"+key.
// The client is owned by the caller and is not closed by Close.
func NewRedis(client redis.Scripter, prefix string, cfg Config) (*RedisLimiter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &RedisLimiter{
		cfg:    cfg,
		client: client,
		prefix: prefix + "rl:",
		now:    time.Now,
	}, nil
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if l.closed.Load() {
		return Decision{}, ErrClosed
	}

	res, err := incrWindow.Run(ctx, l.client, []string{l.prefix + key}, l.cfg.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis rate limit: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("redis rate limit: unexpected reply %v", res)
	}

	count, ttl := res[0], time.Duration(res[1])*time.Millisecond
	return Decision{
		Allowed: count <= l.cfg.Limit,
		Count:   count,
		Limit:   l.cfg.Limit,
		ResetAt: l.now().Add(ttl),
	}, nil
}

// Close marks the limiter closed.
func (l *RedisLimiter) Close() error {
	l.closed.Store(true)
	return nil
}
