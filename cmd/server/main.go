// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"familybudget/internal/ai"
	"familybudget/internal/auth"
	"familybudget/internal/budget"
	"familybudget/internal/config"
	"familybudget/internal/db"
	"familybudget/internal/handlers"
	"familybudget/internal/ledger"
	"familybudget/internal/middleware"
	"familybudget/internal/models"
	"familybudget/internal/telemetry"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

const (
	sessionSweepInterval = time.Hour
	cacheSweepInterval   = 10 * time.Minute
	limiterSweepInterval = 5 * time.Minute
	shutdownTimeout      = 15 * time.Second
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))

	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg)
	if err != nil {
		slog.Error("Failed to connect to database", "backend", cfg.Backend, "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := seedAdmin(ctx, cfg, database); err != nil {
		slog.Error("Failed to create initial administrator", "error", err)
		os.Exit(1)
	}

	cats := models.MustLoadCategories()
	flows, err := newFlows(ctx, cfg, cats)
	if err != nil {
		slog.Error("Failed to initialize AI client", "error", err)
		os.Exit(1)
	}

	loginLimiter := middleware.NewInMemoryRateLimiter(middleware.LoginPolicy)
	aiLimiter := middleware.NewInMemoryRateLimiter(middleware.AIPolicy)
	slog.Info("Rate limiters initialized", "backend", "in-memory",
		"login_max", middleware.LoginPolicy.MaxRequests, "ai_max", middleware.AIPolicy.MaxRequests)

	go flows.CategoryCache().RunSweeper(ctx, cacheSweepInterval)
	go loginLimiter.RunCleanup(ctx, limiterSweepInterval)
	go aiLimiter.RunCleanup(ctx, limiterSweepInterval)
	go sweepSessions(ctx, database)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.Recovery(cfg.AppVersion))
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(middleware.RequestContext())
	router.Use(middleware.SecurityHeaders())

	csrf := middleware.NewCSRFMiddleware(cfg.SessionSecret, cfg.SecureCookies)
	router.Use(csrf.Handler())
	router.Use(middleware.SessionLoader(database.Queries))

	err = handlers.Register(router, handlers.Services{
		Config:       cfg,
		DB:           database,
		Budget:       budget.NewService(database, cats),
		Ledger:       ledger.NewService(database),
		Flows:        flows,
		LoginLimiter: loginLimiter,
		AILimiter:    aiLimiter,
	})
	if err != nil {
		slog.Error("Failed to register routes", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf("0.0.0.0:%s", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting family budget server", "address", addr, "version", cfg.AppVersion,
			"backend", cfg.Backend, "ai_enabled", flows.Enabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}

// seedAdmin creates the configured administrator on an empty database.
// Without INITIAL_ADMIN the first visitor completes /setup instead.
func seedAdmin(ctx context.Context, cfg *config.Config, database *db.Database) error {
	if cfg.InitialAdmin == "" {
		return nil
	}
	n, err := database.Queries.CountUsers(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	user, err := auth.CreateAccount(ctx, database.Queries, auth.AccountInput{
		Username: cfg.InitialAdmin,
		Password: cfg.InitialPassword,
		Confirm:  cfg.InitialPassword,
		Role:     models.RoleAdmin,
	})
	if err != nil {
		return err
	}
	slog.Info("Initial administrator created", "user_id", user.ID, "username", user.Username)
	return nil
}

func newFlows(ctx context.Context, cfg *config.Config, cats *models.CategorySet) (*ai.Flows, error) {
	health := telemetry.NewRegistry()
	if !cfg.AIEnabled() {
		slog.Warn("GEMINI_API_KEY not set, AI features will use fallbacks")
		return ai.NewFlows(nil, health, cats, ai.WithTimeout(cfg.AITimeout)), nil
	}
	client, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, err
	}
	slog.Info("Gemini client initialized", "model", client.Model(), "timeout", cfg.AITimeout)
	return ai.NewFlows(client, health, cats, ai.WithTimeout(cfg.AITimeout)), nil
}

func sweepSessions(ctx context.Context, database *db.Database) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := database.Queries.DeleteExpiredSessions(ctx)
			if err != nil {
				slog.Warn("Session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("Expired sessions removed", "count", n)
			}
		}
	}
}
