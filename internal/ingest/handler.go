// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package ingest

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mileusna/useragent"

	"github.com/olegiv/gymsite/internal/auth"
	"github.com/olegiv/gymsite/internal/config"
	"github.com/olegiv/gymsite/internal/handler/api"
	"github.com/olegiv/gymsite/internal/model"
	"github.com/olegiv/gymsite/internal/ratelimit"
	"github.com/olegiv/gymsite/internal/util"
	"github.com/olegiv/gymsite/internal/webhook"
)

// Pipeline stages reported in logs.
const (
	StageReceived = "received"
	StageRejected = "rejected"
	StageSuccess  = "success"
	StageError    = "error"
)

// Handler serves the ingestion endpoint.
type Handler struct {
	svc     *Service
	cfg     config.IngestConfig
	limiter ratelimit.Limiter
	logger  *slog.Logger
	now     func() time.Time
}

// NewHandler creates a Handler. A missing signature secret is reported once
// here since every request will then skip the signature check.
func NewHandler(svc *Service, cfg config.IngestConfig, limiter ratelimit.Limiter, logger *slog.Logger) *Handler {
	logger = logger.With("category", model.LogCategoryIngestion)
	if cfg.SignatureSecret == "" {
		logger.Warn("ingestion signature secret is not set; payload signatures are not verified")
	}
	return &Handler{
		svc:     svc,
		cfg:     cfg,
		limiter: limiter,
		logger:  logger,
		now:     time.Now,
	}
}

// livenessResponse is the static GET payload.
type livenessResponse struct {
	Status   string   `json:"status"`
	Endpoint string   `json:"endpoint"`
	Methods  []string `json:"methods"`
}

// Liveness handles GET /webhooks/ingestion.
func (h *Handler) Liveness(w http.ResponseWriter, _ *http.Request) {
	api.WriteJSON(w, http.StatusOK, livenessResponse{
		Status:   "ok",
		Endpoint: "ingestion",
		Methods:  []string{http.MethodPost},
	})
}

// Receive handles POST /webhooks/ingestion.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	ip := util.ClientIP(r)
	log := h.logger.With("client_ip", ip, "agent", agentName(r.UserAgent()))

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("ingestion failed", "stage", StageError, "reason", "panic", "panic", fmt.Sprint(rec))
			api.WriteErr(w, api.Internal(nil))
		}
	}()

	log.Info("ingestion received", "stage", StageReceived)

	post, err := h.process(w, r, ip)
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			log.Warn("ingestion rejected",
				"stage", StageRejected,
				"status", apiErr.Status,
				"reason", rejectReason(apiErr),
			)
		} else {
			log.Error("ingestion failed", "stage", StageError, "reason", "persist", "error", err)
		}
		api.WriteErr(w, err)
		return
	}

	log.Info("ingestion success", "stage", StageSuccess, "post_id", post.ID, "slug", post.Slug)
	api.WriteCreated(w, post)
}

// process runs the pipeline stages in order. Every returned error is an
// *api.Error except unexpected persistence failures.
func (h *Handler) process(w http.ResponseWriter, r *http.Request, ip string) (model.Post, error) {
	if err := h.authenticate(r); err != nil {
		return model.Post{}, err
	}
	if err := h.rateLimit(r, ip); err != nil {
		return model.Post{}, err
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
	if err != nil {
		return model.Post{}, api.DecodeError(err)
	}
	payload, msgs := h.svc.Decode(body)
	if len(msgs) > 0 {
		return model.Post{}, api.Validation(msgs)
	}

	if h.cfg.SignatureSecret != "" {
		sig := r.Header.Get(webhook.SignatureHeader)
		if sig == "" {
			return model.Post{}, api.Unauthorized("Missing " + webhook.SignatureHeader + " header")
		}
		if !webhook.VerifySignature(body, sig, h.cfg.SignatureSecret) {
			return model.Post{}, api.Unauthorized("Invalid signature")
		}
	}

	post, err := h.svc.Persist(r.Context(), payload)
	if err != nil {
		return model.Post{}, api.Internal(err)
	}
	return post, nil
}

func (h *Handler) authenticate(r *http.Request) error {
	if !h.cfg.AuthEnabled {
		return nil
	}
	if h.cfg.APIKey == "" {
		return api.Unauthorized("Ingestion authentication is enabled but no API key is configured")
	}

	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return api.Unauthorized("Missing or malformed Authorization header. Use: Bearer <api_key>")
	}
	if !auth.SecretsEqual(h.cfg.APIKey, token) {
		return api.Unauthorized("Invalid API key")
	}
	return nil
}

// rateLimit counts the request against ip. A limiter failure lets the
// request through.
func (h *Handler) rateLimit(r *http.Request, ip string) error {
	if h.limiter == nil {
		return nil
	}
	d, err := h.limiter.Allow(r.Context(), "ingest:"+ip)
	if err != nil {
		h.logger.Warn("rate limiter unavailable; allowing request", "client_ip", ip, "error", err)
		return nil
	}
	if !d.Allowed {
		return api.RateLimited(d.RetryAfter(h.now()))
	}
	return nil
}

// bearerToken extracts the token of a "Bearer <token>" header value.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func rejectReason(e *api.Error) string {
	if msgs, ok := e.Details.([]string); ok && len(msgs) > 0 {
		return strings.Join(msgs, "; ")
	}
	return e.Message
}

// agentName summarises a User-Agent header as "name/version".
func agentName(header string) string {
	if header == "" {
		return "unknown"
	}
	ua := useragent.Parse(header)
	if ua.Name == "" {
		return "unknown"
	}
	if ua.Version == "" {
		return ua.Name
	}
	return ua.Name + "/" + ua.Version
}
