// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package ai

import (
	"context"
	"log/slog"
	"time"

	"familybudget/internal/models"
	"familybudget/internal/telemetry"
)

const (
	FlowBill     = "bill"
	FlowCategory = "category"
	FlowChat     = "chat"
	FlowSchedule = "schedule"
)

// Flows wires the model client, provider health and caches shared by the
// four flows. A nil Generator disables AI; every flow then answers with its
// fallback.
type Flows struct {
	gen        Generator
	health     *telemetry.Registry
	categories *models.CategorySet
	catCache   *telemetry.TTLCache[CategorySuggestion]
	timeout    time.Duration
	now        func() time.Time
}

type Option func(*Flows)

func WithTimeout(d time.Duration) Option {
	return func(f *Flows) {
		if d > 0 {
			f.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(f *Flows) { f.now = now }
}

func WithCategoryCache(c *telemetry.TTLCache[CategorySuggestion]) Option {
	return func(f *Flows) { f.catCache = c }
}

func NewFlows(gen Generator, health *telemetry.Registry, cats *models.CategorySet, opts ...Option) *Flows {
	f := &Flows{
		gen:        gen,
		health:     health,
		categories: cats,
		timeout:    30 * time.Second,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.catCache == nil {
		f.catCache = telemetry.NewTTLCache[CategorySuggestion]("ai_category", 2000, 24*time.Hour)
	}
	return f
}

func (f *Flows) Enabled() bool {
	return f.gen != nil
}

func (f *Flows) CategoryCache() *telemetry.TTLCache[CategorySuggestion] {
	return f.catCache
}

func (f *Flows) Health() *telemetry.Registry {
	return f.health
}

// run executes one model call for flow and decodes it with parse. Any
// failure, including AI being off or cooling down, yields fallback() instead
// of an error.
func run[T any](ctx context.Context, f *Flows, flow string, req Request, parse func(string) (T, error), fallback func() T) (T, bool) {
	if f.gen == nil {
		f.health.RecordFallback(flow)
		return fallback(), true
	}
	if f.health.InCooldown(flow) {
		slog.Warn("AI flow cooling down, using fallback", "flow", flow)
		f.health.RecordFallback(flow)
		return fallback(), true
	}

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	text, err := f.gen.Generate(callCtx, req)
	if err != nil {
		f.health.RecordFailure(flow, err.Error())
		slog.Warn("AI flow failed, using fallback", "flow", flow, "error", err)
		return fallback(), true
	}
	out, err := parse(text)
	if err != nil {
		f.health.RecordFailure(flow, err.Error())
		slog.Warn("AI flow returned unusable output, using fallback", "flow", flow, "error", err, "response_len", len(text))
		return fallback(), true
	}
	f.health.RecordSuccess(flow, time.Since(start))
	slog.Debug("AI flow completed", "flow", flow, "latency_ms", time.Since(start).Milliseconds())
	return out, false
}

func (f *Flows) today() string {
	return models.Today(f.now())
}
