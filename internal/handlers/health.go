// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"familybudget/internal/ai"
	"familybudget/internal/db"
	"familybudget/internal/dbq"
	"familybudget/internal/telemetry"

	"github.com/gin-gonic/gin"
)

const healthQueryTimeout = 3 * time.Second

type HealthHandler struct {
	DB        *db.Database
	StartTime time.Time
	Flows     *ai.Flows
}

func NewHealthHandler(database *db.Database, flows *ai.Flows) *HealthHandler {
	return &HealthHandler{
		DB:        database,
		StartTime: time.Now(),
		Flows:     flows,
	}
}

// HealthCheck is unauthenticated; it reports row counts, never row content.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthQueryTimeout)
	defer cancel()

	status := http.StatusOK
	database := gin.H{
		"status":  "healthy",
		"backend": string(h.DB.Dialect),
	}
	if err := h.DB.HealthCheck(ctx); err != nil {
		database["status"] = "unhealthy: " + err.Error()
		status = http.StatusServiceUnavailable
	} else {
		database["counts"] = h.counts(ctx)
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	response := gin.H{
		"status":   "ok",
		"uptime":   time.Since(h.StartTime).Round(time.Second).String(),
		"database": database,
		"runtime": gin.H{
			"goroutines": runtime.NumGoroutine(),
			"heap_mb":    memStats.HeapAlloc / 1024 / 1024,
		},
	}
	if status != http.StatusOK {
		response["status"] = "degraded"
	}

	if h.Flows != nil {
		providers := h.Flows.Health().AllStats()
		response["ai_enabled"] = h.Flows.Enabled()
		response["providers"] = providers
		response["caches"] = []telemetry.CacheStats{h.Flows.CategoryCache().Stats()}
		response["overall_provider_health"] = string(worstState(providers))
	}

	c.JSON(status, response)
}

func (h *HealthHandler) counts(ctx context.Context) gin.H {
	out := gin.H{}
	if n, err := h.DB.Queries.CountUsers(ctx); err == nil {
		out["users"] = n
	}
	if n, err := h.DB.Queries.CountTransactions(ctx, dbq.TransactionFilter{}); err == nil {
		out["transactions"] = n
	}
	return out
}

func worstState(stats []telemetry.ProviderStats) telemetry.HealthState {
	state := telemetry.Healthy
	for _, ps := range stats {
		switch ps.State {
		case telemetry.Unhealthy:
			return telemetry.Unhealthy
		case telemetry.Degraded:
			state = telemetry.Degraded
		}
	}
	return state
}
