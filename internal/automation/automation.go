// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package automation triggers AI post generation, either by handing the
// prompt to the external automation webhook or, in direct mode, by calling
// the model itself and publishing the result through the ingestion path.
package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/olegiv/gymsite/internal/config"
	"github.com/olegiv/gymsite/internal/model"
	"github.com/olegiv/gymsite/internal/store"
	"github.com/olegiv/gymsite/internal/webhook"
)

// Result statuses.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

// Result messages.
const (
	MessageProcessing = "Post generation is processing in background"
	MessageCompleted  = "Post generation completed"
)

// DefaultSource tags requests that do not name their origin.
const DefaultSource = "admin"

// maxUpstreamBody caps the downstream body echoed back in errors.
const maxUpstreamBody = 2048

var (
	// ErrPromptRequired is returned for an empty or blank prompt.
	ErrPromptRequired = errors.New("prompt is required")
	// ErrNotConfigured is returned when neither a webhook URL nor a direct
	// provider is set up.
	ErrNotConfigured = errors.New("automation webhook is not configured")
	// ErrBreakerOpen is returned while the circuit breaker rejects calls.
	ErrBreakerOpen = errors.New("automation webhook is temporarily unavailable")
	// ErrUnreachable wraps transport failures other than timeouts.
	ErrUnreachable = errors.New("automation webhook unreachable")
	// ErrClosed is returned after Shutdown.
	ErrClosed = errors.New("automation trigger is shutting down")
)

// UpstreamStatusError is a non-2xx answer from the automation webhook.
type UpstreamStatusError struct {
	Status int
	Body   string
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("automation webhook returned status %d", e.Status)
}

// Request is a generation request from the admin panel.
type Request struct {
	Prompt   string `json:"prompt"`
	Category string `json:"category"`
	Source   string `json:"source"`
}

// Result is the outcome of a generation request.
type Result struct {
	Status  string
	Message string
	Data    any
}

// Draft is generated post content before persistence.
type Draft struct {
	Title    string
	Excerpt  string
	Content  string
	Category string
	Image    string
}

// Generator produces a post draft from a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (Draft, error)
}

// Publisher persists a generated draft as an unpublished AI post, left for
// an admin to review and publish.
type Publisher interface {
	StoreDraft(ctx context.Context, d Draft) (model.Post, error)
}

// RunStore records generation runs.
type RunStore interface {
	GetAutomationSettings(ctx context.Context) (model.AutomationSettings, error)
	MarkAutomationRun(ctx context.Context, arg store.MarkAutomationRunParams) error
}

// outboundPayload is the JSON body sent to the automation webhook.
type outboundPayload struct {
	Prompt      string `json:"prompt"`
	Category    string `json:"category,omitempty"`
	Source      string `json:"source"`
	RequestedAt string `json:"requestedAt"`
}

// Trigger forwards generation requests. It is safe for concurrent use.
type Trigger struct {
	cfg     config.AutomationConfig
	sender  *webhook.Sender
	breaker *gobreaker.CircuitBreaker
	runs    RunStore
	logger  *slog.Logger
	now     func() time.Time

	generator Generator
	publisher Publisher

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
}

// Option configures a Trigger.
type Option func(*Trigger)

// WithDirectProvider makes the trigger generate posts itself with g and
// persist them with p instead of calling the webhook.
func WithDirectProvider(g Generator, p Publisher) Option {
	return func(t *Trigger) {
		t.generator = g
		t.publisher = p
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Trigger) { t.now = now }
}

// New creates a Trigger.
func New(cfg config.AutomationConfig, runs RunStore, logger *slog.Logger, opts ...Option) *Trigger {
	logger = logger.With("category", model.LogCategoryAutomation)
	ctx, cancel := context.WithCancel(context.Background())

	t := &Trigger{
		cfg:     cfg,
		sender:  webhook.NewSender(cfg.Timeout, cfg.SigningSecret),
		runs:    runs,
		logger:  logger,
		now:     time.Now,
		baseCtx: ctx,
		cancel:  cancel,
	}
	t.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "automation-webhook",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// The downstream keeps working after our deadline.
			return err == nil || webhook.IsTimeout(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			level := slog.LevelInfo
			if to == gobreaker.StateOpen {
				level = slog.LevelWarn
			}
			logger.Log(context.Background(), level, "automation breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Direct reports whether posts are generated in-process.
func (t *Trigger) Direct() bool {
	return t.generator != nil && t.publisher != nil
}

// Configured reports whether a generation request can be served.
func (t *Trigger) Configured() bool {
	return t.Direct() || t.cfg.WebhookURL != ""
}

// Generate validates req and starts a generation.
func (t *Trigger) Generate(ctx context.Context, req Request) (Result, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	req.Category = strings.TrimSpace(req.Category)
	req.Source = strings.TrimSpace(req.Source)
	if req.Prompt == "" {
		return Result{}, ErrPromptRequired
	}
	if req.Source == "" {
		req.Source = DefaultSource
	}

	if t.Direct() {
		return t.startDirect(req)
	}
	if t.cfg.WebhookURL == "" {
		return Result{}, ErrNotConfigured
	}
	return t.callWebhook(ctx, req)
}

func (t *Trigger) callWebhook(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(outboundPayload{
		Prompt:      req.Prompt,
		Category:    req.Category,
		Source:      req.Source,
		RequestedAt: t.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return Result{}, fmt.Errorf("encoding payload: %w", err)
	}

	out, err := t.breaker.Execute(func() (any, error) {
		resp, err := t.sender.PostJSON(ctx, t.cfg.WebhookURL, body)
		if err != nil {
			return nil, err
		}
		if !resp.OK() {
			return nil, &UpstreamStatusError{Status: resp.StatusCode, Body: truncate(string(resp.Body), maxUpstreamBody)}
		}
		return resp, nil
	})

	switch {
	case err == nil:
		resp := out.(*webhook.Response)
		t.logger.Info("automation webhook accepted prompt", "status", resp.StatusCode, "source", req.Source)
		t.markRun(ctx)
		return Result{Status: StatusCompleted, Message: MessageCompleted, Data: decodeBody(resp.Body)}, nil

	case webhook.IsTimeout(err):
		t.logger.Info("automation webhook timed out; treating as accepted",
			"timeout", t.sender.Timeout(), "source", req.Source)
		t.markRun(ctx)
		return Result{Status: StatusProcessing, Message: MessageProcessing}, nil

	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		t.logger.Warn("automation breaker rejected call", "state", t.breaker.State().String())
		return Result{}, fmt.Errorf("%w: %v", ErrBreakerOpen, err)
	}

	var statusErr *UpstreamStatusError
	if errors.As(err, &statusErr) {
		t.logger.Warn("automation webhook returned an error", "status", statusErr.Status)
		return Result{}, statusErr
	}

	t.logger.Warn("automation webhook call failed", "error", err)
	return Result{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
}

func (t *Trigger) startDirect(req Request) (Result, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return Result{}, ErrClosed
	}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		t.runDirect(req)
	}()

	return Result{Status: StatusProcessing, Message: MessageProcessing}, nil
}

func (t *Trigger) runDirect(req Request) {
	defer func() {
		if rec := recover(); rec != nil {
			t.logger.Error("direct generation panicked", "panic", rec)
		}
	}()

	ctx, cancel := context.WithTimeout(t.baseCtx, t.cfg.GenerationTimeout)
	defer cancel()

	start := t.now()
	draft, err := t.generator.Generate(ctx, req)
	if err != nil {
		t.logger.Warn("direct generation failed", "error", err, "source", req.Source)
		return
	}
	if req.Category != "" {
		draft.Category = req.Category
	}

	post, err := t.publisher.StoreDraft(ctx, draft)
	if err != nil {
		t.logger.Warn("publishing generated post failed", "error", err, "title", draft.Title)
		return
	}

	t.logger.Info("generated draft stored",
		"post_id", post.ID,
		"slug", post.Slug,
		"duration", t.now().Sub(start),
	)
	t.markRun(ctx)
}

// markRun stamps last_run and next_run. Failures are logged only.
func (t *Trigger) markRun(ctx context.Context) {
	if t.runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	now := t.now().UTC()
	settings, err := t.runs.GetAutomationSettings(ctx)
	if err != nil {
		t.logger.Warn("loading automation settings failed", "error", err)
		return
	}
	if err := t.runs.MarkAutomationRun(ctx, store.MarkAutomationRunParams{
		LastRun: now,
		NextRun: settings.NextRunAfter(now),
	}); err != nil {
		t.logger.Warn("recording automation run failed", "error", err)
	}
}

// Status describes the automation integration for health checks.
type Status struct {
	Provider   string     `json:"provider"`
	Configured bool       `json:"configured"`
	Enabled    bool       `json:"enabled"`
	Breaker    string     `json:"breaker"`
	Timeout    string     `json:"timeout"`
	LastRun    *time.Time `json:"lastRun,omitempty"`
	NextRun    *time.Time `json:"nextRun,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Status reports configuration, breaker state and the run schedule.
func (t *Trigger) Status(ctx context.Context) Status {
	s := Status{
		Provider:   config.AIProviderWebhook,
		Configured: t.Configured(),
		Breaker:    t.breaker.State().String(),
		Timeout:    t.sender.Timeout().String(),
	}
	if t.Direct() {
		s.Provider = config.AIProviderOpenAI
		s.Timeout = t.cfg.GenerationTimeout.String()
	}
	if t.runs != nil {
		settings, err := t.runs.GetAutomationSettings(ctx)
		if err != nil {
			s.Error = "automation settings unavailable"
		} else {
			s.Enabled = settings.Enabled
			s.LastRun = settings.LastRun
			s.NextRun = settings.NextRun
		}
	}
	return s
}

// Shutdown stops accepting direct-mode work and waits for running
// generations. If ctx ends first, running generations are cancelled.
func (t *Trigger) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.cancel()
		return nil
	case <-ctx.Done():
		t.cancel()
		<-done
		return ctx.Err()
	}
}

// decodeBody returns the body as JSON when it parses, else as text.
func decodeBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return string(body)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
