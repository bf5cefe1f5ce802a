// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/olegiv/gymsite/internal/automation"
	"github.com/olegiv/gymsite/internal/middleware"
	"github.com/olegiv/gymsite/internal/scheduler"
	"github.com/olegiv/gymsite/internal/version"
)

// Check states.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// checkTimeout bounds each dependency probe.
const checkTimeout = 2 * time.Second

// Pinger is a dependency that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AutomationStatus reports the state of the AI generation trigger.
type AutomationStatus interface {
	Status(ctx context.Context) automation.Status
}

// JobLister lists scheduled background jobs.
type JobLister interface {
	List() []scheduler.JobInfo
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	db         *sql.DB
	cache      Pinger
	automation AutomationStatus
	jobs       JobLister
	uploadsDir string
	startTime  time.Time
}

// NewHealthHandler creates a new health handler. cache and trigger may be nil.
func NewHealthHandler(db *sql.DB, cache Pinger, trigger AutomationStatus, uploadsDir string) *HealthHandler {
	return &HealthHandler{
		db:         db,
		cache:      cache,
		automation: trigger,
		uploadsDir: uploadsDir,
		startTime:  time.Now(),
	}
}

// WithJobs includes the scheduler's jobs in the admin health report.
func (h *HealthHandler) WithJobs(jobs JobLister) *HealthHandler {
	h.jobs = jobs
	return h
}

// StartTime returns when the handler (and application) was started.
func (h *HealthHandler) StartTime() time.Time {
	return h.startTime
}

// HealthStatusPublic is the minimal health response for anonymous callers.
type HealthStatusPublic struct {
	Status string `json:"status"`
}

// HealthStatus is the full health response shown to admins.
type HealthStatus struct {
	Status     string              `json:"status"`
	Timestamp  time.Time           `json:"timestamp"`
	Uptime     string              `json:"uptime"`
	Version    string              `json:"version"`
	Checks     map[string]Check    `json:"checks"`
	Automation *automation.Status  `json:"automation,omitempty"`
	Jobs       []scheduler.JobInfo `json:"jobs,omitempty"`
	System     *SystemInfo         `json:"system,omitempty"`
}

// Check represents a single health check result.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// SystemInfo contains system-level information.
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutines"`
	NumCPU       int    `json:"num_cpus"`
	MemAlloc     string `json:"mem_alloc"`
	MemSys       string `json:"mem_sys"`
}

// Health handles GET /health. The status is 503 when the database is
// unreachable. Anonymous callers only get the overall status.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := map[string]Check{
		"database": h.checkDatabase(ctx),
		"disk":     h.checkDiskSpace(),
	}
	if h.cache != nil {
		checks["cache"] = h.checkCache(ctx)
	}

	overall := StatusHealthy
	for _, c := range checks {
		if c.Status != StatusHealthy {
			overall = StatusDegraded
		}
	}

	code := http.StatusOK
	if checks["database"].Status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}

	user := middleware.GetUser(r)
	if user == nil || !user.IsAdmin() {
		writeJSON(w, code, HealthStatusPublic{Status: overall})
		return
	}

	status := HealthStatus{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   version.Get().Version,
		Checks:    checks,
	}
	if h.automation != nil {
		s := h.automation.Status(ctx)
		status.Automation = &s
	}
	if h.jobs != nil {
		status.Jobs = h.jobs.List()
	}
	if r.URL.Query().Get("verbose") == "true" {
		status.System = systemInfo()
	}
	writeJSON(w, code, status)
}

// Liveness handles GET /health/live.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Readiness handles GET /health/ready.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if db := h.checkDatabase(r.Context()); db.Status != StatusHealthy {
		resp := map[string]string{"status": "not_ready"}
		if user := middleware.GetUser(r); user != nil && user.IsAdmin() {
			resp["message"] = db.Message
		}
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Automation handles GET /health/automation: whether generation is
// configured, the breaker state and the run schedule.
func (h *HealthHandler) Automation(w http.ResponseWriter, r *http.Request) {
	if h.automation == nil {
		writeJSON(w, http.StatusOK, automation.Status{Breaker: "disabled"})
		return
	}
	writeJSON(w, http.StatusOK, h.automation.Status(r.Context()))
}

func (h *HealthHandler) checkDatabase(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := h.db.PingContext(ctx)
	latency := time.Since(start)
	if err != nil {
		return Check{Status: StatusUnhealthy, Message: err.Error(), Latency: latency.String()}
	}
	return Check{Status: StatusHealthy, Message: "Connected", Latency: latency.String()}
}

func (h *HealthHandler) checkCache(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := h.cache.Ping(ctx)
	latency := time.Since(start)
	if err != nil {
		return Check{Status: StatusDegraded, Message: err.Error(), Latency: latency.String()}
	}
	return Check{Status: StatusHealthy, Latency: latency.String()}
}

// checkDiskSpace reports free space in the uploads directory.
func (h *HealthHandler) checkDiskSpace() Check {
	if _, err := os.Stat(h.uploadsDir); os.IsNotExist(err) {
		return Check{Status: StatusHealthy, Message: "Uploads directory does not exist yet"}
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(h.uploadsDir, &stat); err != nil {
		return Check{Status: StatusUnhealthy, Message: "Failed to check disk space: " + err.Error()}
	}

	availableBytes := stat.Bavail * uint64(stat.Bsize)
	available := humanize.IBytes(availableBytes)

	const minSpace = 100 << 20
	if availableBytes < minSpace {
		return Check{Status: StatusDegraded, Message: "Low disk space: " + available + " available"}
	}
	return Check{Status: StatusHealthy, Message: available + " available"}
}

func systemInfo() *SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return &SystemInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     humanize.IBytes(m.Alloc),
		MemSys:       humanize.IBytes(m.Sys),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
