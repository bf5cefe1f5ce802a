// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Command gymsite serves the gym's public site, its JSON admin API and the
// webhook that receives generated posts.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/olegiv/gymsite/internal/automation"
	"github.com/olegiv/gymsite/internal/cache"
	"github.com/olegiv/gymsite/internal/config"
	"github.com/olegiv/gymsite/internal/handler"
	"github.com/olegiv/gymsite/internal/handler/api"
	"github.com/olegiv/gymsite/internal/imaging"
	"github.com/olegiv/gymsite/internal/ingest"
	"github.com/olegiv/gymsite/internal/logging"
	"github.com/olegiv/gymsite/internal/middleware"
	"github.com/olegiv/gymsite/internal/ratelimit"
	"github.com/olegiv/gymsite/internal/scheduler"
	"github.com/olegiv/gymsite/internal/session"
	"github.com/olegiv/gymsite/internal/sitecache"
	"github.com/olegiv/gymsite/internal/store"
	"github.com/olegiv/gymsite/internal/version"
	"github.com/olegiv/gymsite/web"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "gymsite - gym website and content backend\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GYM_SESSION_SECRET            Session key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GYM_DB_PATH                   SQLite database path (default: ./data/gymsite.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GYM_SERVER_PORT               Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GYM_ENV                       development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GYM_REDIS_URL                 Redis URL for the shared cache and rate limiter (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GYM_INGEST_API_KEY            Bearer key for the ingestion webhook\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GYM_AUTOMATION_WEBHOOK_URL    Automation endpoint that generates posts\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if *showVersion {
		v := version.Get()
		_, _ = fmt.Printf("gymsite %s (commit: %s, built: %s)\n", v.Version, v.GitCommit, v.BuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := parseLevel(cfg.LogLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// WARN and above are mirrored into event_logs from here on.
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logging.NewEventLogHandler(textHandler, db))
	slog.SetDefault(logger)
	slog.Info("database ready")

	ctx := context.Background()
	if err := store.SeedAdmin(ctx, db, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return fmt.Errorf("seeding admin: %w", err)
	}

	// Redis is shared by the site cache and the ingestion rate limiter.
	var redisClient *redis.Client
	if cfg.UseRedis() {
		redisClient, err = cache.NewRedisClient(ctx, cache.DefaultRedisOptions(cfg.RedisURL))
		if err != nil {
			return err
		}
		defer func() { _ = redisClient.Close() }()
		slog.Info("redis connected")
	}

	cacheCfg := cache.DefaultConfig()
	cacheCfg.Prefix = cfg.CachePrefix
	var cacheBackend cache.Cache
	if redisClient != nil {
		cacheBackend = cache.New(cacheCfg, redisClient)
	} else {
		cacheBackend = cache.New(cacheCfg, nil)
	}
	defer func() { _ = cacheBackend.Close() }()

	limiter, err := newIngestLimiter(cfg, redisClient)
	if err != nil {
		return fmt.Errorf("creating rate limiter: %w", err)
	}
	defer func() { _ = limiter.Close() }()

	site := sitecache.New(db, cacheBackend, cfg.Site.PostsOnHome, logger)
	invalidate := func(ctx context.Context) { site.Invalidate(ctx) }

	ingestSvc := ingest.NewService(db, cfg.Ingest, logger, ingest.OnCreate(invalidate))
	ingestHandler := ingest.NewHandler(ingestSvc, cfg.Ingest, limiter, logger)

	var triggerOpts []automation.Option
	if cfg.Automation.UseOpenAI() {
		gen := automation.NewOpenAIGenerator(cfg.Automation.OpenAIAPIKey, cfg.Automation.OpenAIModel)
		triggerOpts = append(triggerOpts, automation.WithDirectProvider(gen, ingestSvc))
		slog.Info("AI generation uses the OpenAI provider", "model", cfg.Automation.OpenAIModel)
	}
	trigger := automation.New(cfg.Automation, store.New(db), logger, triggerOpts...)

	if err := os.MkdirAll(cfg.UploadsDir, 0o755); err != nil {
		return fmt.Errorf("creating uploads directory: %w", err)
	}
	images := imaging.NewProcessor(cfg.UploadsDir, cfg.Upload.MaxWidth)

	apiHandler := api.NewHandler(db, logger, invalidate,
		api.WithTrigger(trigger),
		api.WithImages(images, cfg.Upload.MaxBytes),
	)

	sessionManager, sessionStore := session.New(db, cfg.IsDevelopment())
	defer sessionStore.StopCleanup()

	loginProtection := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())
	defer loginProtection.Close()

	apiLimiter := middleware.NewGlobalRateLimiter(10, 30)

	authHandler := handler.NewAuthHandler(db, sessionManager, loginProtection, logger)
	siteHandler, err := handler.NewSiteHandler(site, web.Templates, handler.SiteOptions{
		BaseURL: cfg.PublicBaseURL,
		NoIndex: !cfg.IsProduction(),
	}, logger)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	sched := scheduler.New(logger)
	if err := sched.AddSiteRefresh(cfg.Site.RefreshSpec, site); err != nil {
		return fmt.Errorf("scheduling site refresh: %w", err)
	}
	if err := sched.AddLogPruning(store.New(db), scheduler.DefaultLogRetention); err != nil {
		return fmt.Errorf("scheduling log pruning: %w", err)
	}
	if err := sched.Add("prune_api_limiters", "Drop idle API rate limiter buckets", "@every 10m",
		func(context.Context) error {
			apiLimiter.Prune(10000)
			return nil
		}); err != nil {
		return fmt.Errorf("scheduling limiter pruning: %w", err)
	}

	healthHandler := handler.NewHealthHandler(db, cacheBackend, trigger, cfg.UploadsDir).WithJobs(sched)

	if err := site.Refresh(ctx); err != nil {
		slog.Warn("initial site snapshot failed", "error", err)
	}
	sched.Start()

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		return fmt.Errorf("loading static assets: %w", err)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.GetHead)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.StripTrailingSlash)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))
	r.Use(middleware.RequestPath)

	// Machine-to-machine and health endpoints: no session, no CSRF.
	r.Get(handler.RouteHealth, healthHandler.Health)
	r.Get(handler.RouteHealthLive, healthHandler.Liveness)
	r.Get(handler.RouteHealthReady, healthHandler.Readiness)
	r.Get(handler.RouteHealthAutomation, healthHandler.Automation)

	r.Get(handler.RouteIngestion, ingestHandler.Liveness)
	r.Post(handler.RouteIngestion, ingestHandler.Receive)

	r.Group(func(r chi.Router) {
		r.Use(middleware.OpenCORS())
		r.Use(apiLimiter.Middleware())
		r.Options(handler.RouteGenerate, apiHandler.Generate)
		r.Post(handler.RouteGenerate, apiHandler.Generate)
	})

	r.Get(handler.RouteSitemap, siteHandler.Sitemap)
	r.Get(handler.RouteRobots, siteHandler.Robots)

	r.With(middleware.StaticCache(86400)).Handle(handler.RouteStatic,
		http.StripPrefix("/static/", http.FileServerFS(staticFS)))
	r.With(middleware.StaticCache(86400)).Handle(handler.RouteUploads,
		http.StripPrefix(api.UploadsURLPrefix+"/", http.FileServer(http.Dir(cfg.UploadsDir))))

	csrfMiddleware := middleware.CSRF(middleware.DefaultCSRFConfig(
		[]byte(cfg.SessionSecret), cfg.IsDevelopment(), cfg.PublicBaseURL))

	// Session-aware routes.
	r.Group(func(r chi.Router) {
		r.Use(sessionManager.LoadAndSave)
		r.Use(csrfMiddleware)
		r.Use(middleware.LoadUser(sessionManager, store.New(db)))

		r.Get(handler.RouteRoot, siteHandler.Home)
		r.Get(handler.RouteBlogPost, siteHandler.Post)

		r.Route(handler.RouteAdmin, func(r chi.Router) {
			r.Use(middleware.NoStore)
			r.With(loginProtection.Middleware()).Post(handler.RouteLogin, authHandler.Login)
			r.Post(handler.RouteLogout, authHandler.Logout)
			r.Get(handler.RouteMe, authHandler.Me)
		})

		r.Group(func(r chi.Router) {
			r.Use(apiLimiter.Middleware())
			registerAPIRoutes(r, apiHandler)
		})
	})

	r.NotFound(siteHandler.NotFound)

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", version.Get().Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server: %w", err)
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	sched.Stop(shutdownCtx)
	if err := trigger.Shutdown(shutdownCtx); err != nil {
		slog.Warn("automation shutdown incomplete", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

// newIngestLimiter returns a Redis-backed limiter when client is set.
func newIngestLimiter(cfg *config.Config, client *redis.Client) (ratelimit.Limiter, error) {
	rl := ratelimit.Config{Limit: int64(cfg.Ingest.RateLimitMax), Window: cfg.Ingest.RateLimitWindow}
	if client != nil {
		l, err := ratelimit.NewRedis(client, cfg.CachePrefix, rl)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	l, err := ratelimit.NewMemory(rl, time.Minute)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// registerAPIRoutes mounts the JSON management API. Reads are public and
// writes require an admin session.
func registerAPIRoutes(r chi.Router, h *api.Handler) {
	r.Get(handler.RoutePosts, h.ListPosts)
	r.Get(handler.RoutePosts+handler.RouteParamSlug, h.GetPost)
	r.Get(handler.RouteEvents, h.ListEvents)
	r.Get(handler.RouteEvents+handler.RouteParamID, h.GetEvent)
	r.Get(handler.RouteSettings, h.GetSettings)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin())

		r.Post(handler.RoutePosts, h.CreatePost)
		r.Patch(handler.RoutePosts+handler.RouteParamSlug, h.UpdatePost)
		r.Delete(handler.RoutePosts+handler.RouteParamSlug, h.DeletePost)
		r.Post(handler.RoutePosts+handler.RouteParamSlug+handler.RouteSuffixPublish, h.TogglePostPublished)

		r.Post(handler.RouteEvents, h.CreateEvent)
		r.Patch(handler.RouteEvents+handler.RouteParamID, h.UpdateEvent)
		r.Post(handler.RouteEvents+handler.RouteParamID+handler.RouteSuffixToggle, h.ToggleEvent)
		r.Delete(handler.RouteEvents+handler.RouteParamID, h.DeleteEvent)

		r.Post(handler.RouteSettings, h.UpdateSettings)
		r.Get(handler.RouteAutomationSettings, h.GetAutomationSettings)
		r.Put(handler.RouteAutomationSettings, h.UpdateAutomationSettings)

		r.Post(handler.RouteUpload, h.Upload)
	})
}
