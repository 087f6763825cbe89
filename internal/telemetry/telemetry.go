// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.

// Package telemetry tracks the health of outbound AI calls and the in-memory
// caches in front of them.
package telemetry

import (
	"math"
	"sort"
	"sync"
	"time"
)

type HealthState string

const (
	Healthy   HealthState = "healthy"
	Degraded  HealthState = "degraded"
	Unhealthy HealthState = "unhealthy"

	degradedThreshold  = 3
	unhealthyThreshold = 5
	cooldownBase       = 5 * time.Second
	cooldownMax        = 5 * time.Minute
	latencyWindowSize  = 100
)

// ProviderStats is the JSON view of one provider (one AI flow) reported on
// /api/health.
type ProviderStats struct {
	Name            string      `json:"name"`
	State           HealthState `json:"state"`
	TotalRequests   int64       `json:"total_requests"`
	SuccessCount    int64       `json:"success_count"`
	FailureCount    int64       `json:"failure_count"`
	FallbackCount   int64       `json:"fallback_count"`
	ConsecFailures  int         `json:"consecutive_failures"`
	LastError       string      `json:"last_error,omitempty"`
	LastErrorTime   *time.Time  `json:"last_error_time,omitempty"`
	LastSuccessTime *time.Time  `json:"last_success_time,omitempty"`
	AvgLatencyMs    float64     `json:"avg_latency_ms"`
	P95LatencyMs    float64     `json:"p95_latency_ms"`
	InCooldown      bool        `json:"in_cooldown"`
	CooldownUntil   *time.Time  `json:"cooldown_until,omitempty"`
}

type provider struct {
	mu             sync.Mutex
	name           string
	total          int64
	successes      int64
	failures       int64
	fallbacks      int64
	consecFailures int
	lastError      string
	lastErrorAt    time.Time
	lastSuccessAt  time.Time
	latencies      [latencyWindowSize]float64
	next           int
	filled         int
	cooldownUntil  time.Time
}

// Registry records per-provider outcomes. After degradedThreshold consecutive
// failures a provider enters an exponential cooldown during which callers
// should skip it.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*provider
	now       func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]*provider), now: time.Now}
}

// WithClock replaces the time source, for tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

func (r *Registry) lookup(name string) *provider {
	r.mu.RLock()
	p, ok := r.providers[name]
	r.mu.RUnlock()
	if ok {
		return p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok = r.providers[name]; ok {
		return p
	}
	p = &provider{name: name}
	r.providers[name] = p
	return p
}

func (r *Registry) RecordSuccess(name string, latency time.Duration) {
	p := r.lookup(name)
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total++
	p.successes++
	p.consecFailures = 0
	p.lastSuccessAt = r.now()
	p.cooldownUntil = time.Time{}

	p.latencies[p.next] = float64(latency.Microseconds()) / 1000.0
	p.next = (p.next + 1) % latencyWindowSize
	if p.filled < latencyWindowSize {
		p.filled++
	}
}

func (r *Registry) RecordFailure(name, errMsg string) {
	p := r.lookup(name)
	p.mu.Lock()
	defer p.mu.Unlock()

	now := r.now()
	p.total++
	p.failures++
	p.consecFailures++
	p.lastError = errMsg
	p.lastErrorAt = now

	if p.consecFailures >= degradedThreshold {
		backoff := float64(cooldownBase) * math.Pow(2, float64(p.consecFailures-degradedThreshold))
		p.cooldownUntil = now.Add(time.Duration(math.Min(backoff, float64(cooldownMax))))
	}
}

// RecordFallback counts a call answered by the fallback path without an
// attempt, e.g. while disabled or cooling down.
func (r *Registry) RecordFallback(name string) {
	p := r.lookup(name)
	p.mu.Lock()
	p.fallbacks++
	p.mu.Unlock()
}

func (r *Registry) InCooldown(name string) bool {
	r.mu.RLock()
	p, ok := r.providers[name]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.cooldownUntil.IsZero() && r.now().Before(p.cooldownUntil)
}

func (r *Registry) Stats(name string) ProviderStats {
	p := r.lookup(name)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot(r.now())
}

// AllStats returns every known provider sorted by name.
func (r *Registry) AllStats() []ProviderStats {
	r.mu.RLock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)

	out := make([]ProviderStats, 0, len(names))
	for _, name := range names {
		out = append(out, r.Stats(name))
	}
	return out
}

func (p *provider) snapshot(now time.Time) ProviderStats {
	s := ProviderStats{
		Name:           p.name,
		TotalRequests:  p.total,
		SuccessCount:   p.successes,
		FailureCount:   p.failures,
		FallbackCount:  p.fallbacks,
		ConsecFailures: p.consecFailures,
		LastError:      p.lastError,
		State:          Healthy,
	}
	if !p.lastErrorAt.IsZero() {
		t := p.lastErrorAt
		s.LastErrorTime = &t
	}
	if !p.lastSuccessAt.IsZero() {
		t := p.lastSuccessAt
		s.LastSuccessTime = &t
	}
	switch {
	case p.consecFailures >= unhealthyThreshold:
		s.State = Unhealthy
	case p.consecFailures >= degradedThreshold:
		s.State = Degraded
	}
	if !p.cooldownUntil.IsZero() && now.Before(p.cooldownUntil) {
		s.InCooldown = true
		t := p.cooldownUntil
		s.CooldownUntil = &t
	}

	if p.filled > 0 {
		window := make([]float64, p.filled)
		copy(window, p.latencies[:p.filled])
		sort.Float64s(window)
		var sum float64
		for _, v := range window {
			sum += v
		}
		s.AvgLatencyMs = sum / float64(len(window))
		s.P95LatencyMs = window[int(float64(len(window)-1)*0.95)]
	}
	return s
}
