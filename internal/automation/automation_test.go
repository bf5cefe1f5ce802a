// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package automation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/gymsite/internal/config"
	"github.com/olegiv/gymsite/internal/model"
	"github.com/olegiv/gymsite/internal/store"
	"github.com/olegiv/gymsite/internal/testutil"
	"github.com/olegiv/gymsite/internal/webhook"
)

var fixedNow = time.Date(2026, 5, 4, 7, 30, 0, 0, time.UTC)

func testConfig(url string) config.AutomationConfig {
	return config.AutomationConfig{
		WebhookURL:        url,
		Timeout:           200 * time.Millisecond,
		Provider:          config.AIProviderWebhook,
		GenerationTimeout: time.Second,
	}
}

func newTestTrigger(t *testing.T, cfg config.AutomationConfig, opts ...Option) (*Trigger, *store.Queries) {
	t.Helper()
	q := store.New(testutil.TestDB(t))
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	tr := New(cfg, q, testutil.DiscardLogger(), opts...)
	t.Cleanup(func() { _ = tr.Shutdown(context.Background()) })
	return tr, q
}

func TestGenerate_PromptRequired(t *testing.T) {
	tr, _ := newTestTrigger(t, testConfig("http://127.0.0.1:1"))

	for _, prompt := range []string{"", "   ", "\n\t"} {
		_, err := tr.Generate(context.Background(), Request{Prompt: prompt})
		assert.ErrorIs(t, err, ErrPromptRequired, "prompt %q", prompt)
	}
}

func TestGenerate_NotConfigured(t *testing.T) {
	tr, _ := newTestTrigger(t, testConfig(""))

	assert.False(t, tr.Configured())
	_, err := tr.Generate(context.Background(), Request{Prompt: "leg day"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGenerate_Completed(t *testing.T) {
	const secret = "automation-signing-secret-value!"
	var got outboundPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.True(t, webhook.VerifySignature(body, r.Header.Get(webhook.SignatureHeader), secret))
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"executionId":"abc123"}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.SigningSecret = secret
	tr, q := newTestTrigger(t, cfg)

	res, err := tr.Generate(context.Background(), Request{Prompt: "  mobility drills ", Category: "Training"})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, map[string]any{"executionId": "abc123"}, res.Data)
	assert.Equal(t, "mobility drills", got.Prompt)
	assert.Equal(t, "Training", got.Category)
	assert.Equal(t, DefaultSource, got.Source)
	assert.Equal(t, "2026-05-04T07:30:00Z", got.RequestedAt)

	settings, err := q.GetAutomationSettings(context.Background())
	require.NoError(t, err)
	require.NotNil(t, settings.LastRun)
	assert.True(t, settings.LastRun.Equal(fixedNow))
	require.NotNil(t, settings.NextRun)
	assert.True(t, settings.NextRun.Equal(fixedNow.AddDate(0, 0, model.DefaultFrequencyDays)))
}

func TestGenerate_TextResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Workflow was started"))
	}))
	defer srv.Close()

	tr, _ := newTestTrigger(t, testConfig(srv.URL))
	res, err := tr.Generate(context.Background(), Request{Prompt: "sleep"})
	require.NoError(t, err)
	assert.Equal(t, "Workflow was started", res.Data)
}

func TestGenerate_TimeoutIsAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	tr, q := newTestTrigger(t, cfg)

	res, err := tr.Generate(context.Background(), Request{Prompt: "protein myths"})
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, res.Status)
	assert.Equal(t, MessageProcessing, res.Message)

	settings, err := q.GetAutomationSettings(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, settings.LastRun, "a timed out hand-off still counts as a run")
}

func TestGenerate_UpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("workflow crashed"))
	}))
	defer srv.Close()

	tr, q := newTestTrigger(t, testConfig(srv.URL))

	_, err := tr.Generate(context.Background(), Request{Prompt: "hiit"})
	var statusErr *UpstreamStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Status)
	assert.Equal(t, "workflow crashed", statusErr.Body)

	settings, err := q.GetAutomationSettings(context.Background())
	require.NoError(t, err)
	assert.Nil(t, settings.LastRun)
}

func TestGenerate_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	tr, _ := newTestTrigger(t, testConfig(url))
	_, err := tr.Generate(context.Background(), Request{Prompt: "rest days"})
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestGenerate_BreakerOpensAfterFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tr, _ := newTestTrigger(t, testConfig(srv.URL))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := tr.Generate(ctx, Request{Prompt: "squats"})
		var statusErr *UpstreamStatusError
		require.ErrorAs(t, err, &statusErr)
	}

	_, err := tr.Generate(ctx, Request{Prompt: "squats"})
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.Equal(t, int32(3), hits.Load(), "open breaker must not call the webhook")
	assert.Equal(t, "open", tr.Status(ctx).Breaker)
}

func TestGenerate_TimeoutsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server notices when the client disconnects.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Timeout = 20 * time.Millisecond
	tr, _ := newTestTrigger(t, cfg)

	for i := 0; i < 4; i++ {
		res, err := tr.Generate(context.Background(), Request{Prompt: "cardio"})
		require.NoError(t, err)
		assert.Equal(t, StatusProcessing, res.Status)
	}
	assert.Equal(t, "closed", tr.Status(context.Background()).Breaker)
}

type fakeGenerator struct {
	draft Draft
	err   error
}

func (f fakeGenerator) Generate(_ context.Context, _ Request) (Draft, error) {
	return f.draft, f.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	drafts []Draft
}

func (p *recordingPublisher) StoreDraft(_ context.Context, d Draft) (model.Post, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drafts = append(p.drafts, d)
	return model.Post{ID: int64(len(p.drafts)), Slug: "generated"}, nil
}

func TestGenerate_DirectMode(t *testing.T) {
	pub := &recordingPublisher{}
	gen := fakeGenerator{draft: Draft{Title: "Deadlift basics", Excerpt: "e", Content: "c", Category: "Strength"}}
	tr, q := newTestTrigger(t, testConfig(""), WithDirectProvider(gen, pub))

	assert.True(t, tr.Direct())
	assert.True(t, tr.Configured())

	res, err := tr.Generate(context.Background(), Request{Prompt: "deadlifts", Category: "Training"})
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, res.Status)

	require.NoError(t, tr.Shutdown(context.Background()))

	require.Len(t, pub.drafts, 1)
	assert.Equal(t, "Deadlift basics", pub.drafts[0].Title)
	assert.Equal(t, "Training", pub.drafts[0].Category, "request category wins over the generated one")

	settings, err := q.GetAutomationSettings(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, settings.LastRun)

	_, err = tr.Generate(context.Background(), Request{Prompt: "again"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestGenerate_DirectModeFailureIsLogged(t *testing.T) {
	pub := &recordingPublisher{}
	gen := fakeGenerator{err: errors.New("model overloaded")}
	tr, q := newTestTrigger(t, testConfig(""), WithDirectProvider(gen, pub))

	_, err := tr.Generate(context.Background(), Request{Prompt: "yoga"})
	require.NoError(t, err)
	require.NoError(t, tr.Shutdown(context.Background()))

	assert.Empty(t, pub.drafts)
	settings, err := q.GetAutomationSettings(context.Background())
	require.NoError(t, err)
	assert.Nil(t, settings.LastRun)
}

func TestStatus(t *testing.T) {
	tr, q := newTestTrigger(t, testConfig("https://automation.example.com/hook"))
	ctx := context.Background()

	_, err := q.UpsertAutomationSettings(ctx, store.UpsertAutomationSettingsParams{
		Enabled:       true,
		FrequencyDays: 3,
		UpdatedAt:     fixedNow,
	})
	require.NoError(t, err)

	s := tr.Status(ctx)
	assert.Equal(t, config.AIProviderWebhook, s.Provider)
	assert.True(t, s.Configured)
	assert.True(t, s.Enabled)
	assert.Equal(t, "closed", s.Breaker)
	assert.Equal(t, "200ms", s.Timeout)
	assert.Nil(t, s.LastRun)
}

func TestDecodeBody(t *testing.T) {
	assert.Nil(t, decodeBody(nil))
	assert.Equal(t, []any{1.0, 2.0}, decodeBody([]byte("[1,2]")))
	assert.Equal(t, "plain", decodeBody([]byte("plain")))
}
