// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestMemory(t *testing.T, limit int64, window time.Duration, clock *fakeClock) *MemoryLimiter {
	t.Helper()
	l, err := NewMemory(Config{Limit: limit, Window: window}, time.Hour, WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestMemory_BlocksAfterLimit(t *testing.T) {
	clock := newFakeClock()
	l := newTestMemory(t, 3, time.Minute, clock)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, err := l.Allow(ctx, "203.0.113.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should pass", i)
		assert.Equal(t, int64(i), d.Count)
	}

	d, err := l.Allow(ctx, "203.0.113.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(0), d.Remaining())
	assert.Equal(t, 60, d.RetryAfter(clock.Now()))
}

func TestMemory_ResetsAfterWindow(t *testing.T) {
	clock := newFakeClock()
	l := newTestMemory(t, 2, time.Minute, clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = l.Allow(ctx, "k")
	}
	d, _ := l.Allow(ctx, "k")
	require.False(t, d.Allowed)

	clock.Advance(59 * time.Second)
	d, _ = l.Allow(ctx, "k")
	assert.False(t, d.Allowed, "still inside the window")
	assert.Equal(t, 1, d.RetryAfter(clock.Now()))

	clock.Advance(time.Second)
	d, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "window elapsed")
	assert.Equal(t, int64(1), d.Count)
}

func TestMemory_KeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	l := newTestMemory(t, 1, time.Minute, clock)
	ctx := context.Background()

	a, _ := l.Allow(ctx, "198.51.100.1")
	b, _ := l.Allow(ctx, "198.51.100.2")
	assert.True(t, a.Allowed)
	assert.True(t, b.Allowed)

	a, _ = l.Allow(ctx, "198.51.100.1")
	assert.False(t, a.Allowed)

	b, _ = l.Allow(ctx, "198.51.100.2")
	assert.False(t, b.Allowed)
	assert.Equal(t, int64(2), b.Count)
}

func TestMemory_ConcurrentNoLostUpdates(t *testing.T) {
	clock := newFakeClock()
	const limit, callers = 25, 200
	l := newTestMemory(t, limit, time.Minute, clock)

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Allow(context.Background(), "shared")
			if err == nil && d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(limit), allowed.Load())

	d, err := l.Allow(context.Background(), "shared")
	require.NoError(t, err)
	assert.Equal(t, int64(callers+1), d.Count)
}

func TestMemory_Sweep(t *testing.T) {
	clock := newFakeClock()
	l := newTestMemory(t, 5, time.Minute, clock)
	ctx := context.Background()

	_, _ = l.Allow(ctx, "a")
	clock.Advance(30 * time.Second)
	_, _ = l.Allow(ctx, "b")
	require.Equal(t, 2, l.Len())

	clock.Advance(31 * time.Second)
	l.Sweep()
	assert.Equal(t, 1, l.Len())
}

func TestMemory_Close(t *testing.T) {
	l, err := NewMemory(Config{Limit: 1, Window: time.Second}, 10*time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "Close is idempotent")

	_, err = l.Allow(context.Background(), "k")
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestNewMemory_InvalidConfig(t *testing.T) {
	_, err := NewMemory(Config{Limit: 0, Window: time.Minute}, 0)
	assert.Error(t, err)
	_, err = NewMemory(Config{Limit: 1, Window: 0}, 0)
	assert.Error(t, err)
}

// fakeScripter emulates the INCR/PEXPIRE script against an in-memory map.
type fakeScripter struct {
	redis.Scripter

	mu      sync.Mutex
	clock   *fakeClock
	counts  map[string]int64
	expires map[string]time.Time
	err     error
}

func newFakeScripter(clock *fakeClock) *fakeScripter {
	return &fakeScripter{clock: clock, counts: map[string]int64{}, expires: map[string]time.Time{}}
}

func (f *fakeScripter) run(ctx context.Context, keys []string, args ...interface{}) *redis.Cmd {
	cmd := redis.NewCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	key := keys[0]
	ttl := time.Duration(args[0].(int64)) * time.Millisecond
	now := f.clock.Now()
	if exp, ok := f.expires[key]; ok && !now.Before(exp) {
		delete(f.counts, key)
		delete(f.expires, key)
	}
	f.counts[key]++
	if f.counts[key] == 1 {
		f.expires[key] = now.Add(ttl)
	}
	cmd.SetVal([]interface{}{f.counts[key], f.expires[key].Sub(now).Milliseconds()})
	return cmd
}

func (f *fakeScripter) EvalSha(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(ctx, keys, args...)
}

func (f *fakeScripter) Eval(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(ctx, keys, args...)
}

func TestRedis_WindowSemantics(t *testing.T) {
	clock := newFakeClock()
	fake := newFakeScripter(clock)
	l, err := NewRedis(fake, "gymsite:", Config{Limit: 2, Window: time.Minute})
	require.NoError(t, err)
	l.now = clock.Now
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 60, d.RetryAfter(clock.Now()))

	other, err := l.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	clock.Advance(time.Minute)
	d, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	_, tracked := fake.counts["gymsite:rl:1.2.3.4"]
	assert.True(t, tracked)
}

func TestRedis_ErrorPropagates(t *testing.T) {
	fake := newFakeScripter(newFakeClock())
	fake.err = errors.New("connection refused")
	l, err := NewRedis(fake, "", Config{Limit: 1, Window: time.Second})
	require.NoError(t, err)

	_, err = l.Allow(context.Background(), "k")
	assert.ErrorContains(t, err, "connection refused")
}

func TestRedis_Close(t *testing.T) {
	l, err := NewRedis(newFakeScripter(newFakeClock()), "", Config{Limit: 1, Window: time.Second})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	_, err = l.Allow(context.Background(), "k")
	assert.True(t, errors.Is(err, ErrClosed))
}
