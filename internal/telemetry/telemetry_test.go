// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package telemetry_test

import (
	"sync"
	"testing"
	"time"

	"familybudget/internal/telemetry"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)}
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

func recordFailures(reg *telemetry.Registry, name string, n int) {
	for i := 0; i < n; i++ {
		reg.RecordFailure(name, "upstream error")
	}
}

func assertState(t *testing.T, stats telemetry.ProviderStats, want telemetry.HealthState) {
	t.Helper()
	if stats.State != want {
		t.Errorf("expected health state %q, got %q", want, stats.State)
	}
}

func TestRegistry_SuccessResetsFailures(t *testing.T) {
	reg := telemetry.NewRegistry()
	recordFailures(reg, "bill", 2)
	reg.RecordSuccess("bill", 120*time.Millisecond)

	stats := reg.Stats("bill")
	if stats.TotalRequests != 3 || stats.SuccessCount != 1 || stats.FailureCount != 2 {
		t.Fatalf("unexpected counters: %+v", stats)
	}
	if stats.ConsecFailures != 0 {
		t.Errorf("expected consecutive failures reset, got %d", stats.ConsecFailures)
	}
	assertState(t, stats, telemetry.Healthy)
	if stats.LastError != "upstream error" {
		t.Errorf("last error = %q", stats.LastError)
	}
	if stats.LastSuccessTime == nil {
		t.Error("expected last success time")
	}
}

func TestRegistry_DegradedThenUnhealthy(t *testing.T) {
	clock := newFakeClock()
	reg := telemetry.NewRegistry().WithClock(clock.Now)

	recordFailures(reg, "chat", 2)
	if reg.InCooldown("chat") {
		t.Fatal("two failures must not trigger cooldown")
	}
	assertState(t, reg.Stats("chat"), telemetry.Healthy)

	recordFailures(reg, "chat", 1)
	assertState(t, reg.Stats("chat"), telemetry.Degraded)
	if !reg.InCooldown("chat") {
		t.Fatal("expected cooldown after three failures")
	}

	clock.Advance(6 * time.Second)
	if reg.InCooldown("chat") {
		t.Error("first cooldown lasts five seconds")
	}

	recordFailures(reg, "chat", 2)
	stats := reg.Stats("chat")
	assertState(t, stats, telemetry.Unhealthy)
	if stats.CooldownUntil == nil || stats.CooldownUntil.Sub(clock.Now()) != 20*time.Second {
		t.Errorf("expected 20s cooldown after five failures, got %v", stats.CooldownUntil)
	}
}

func TestRegistry_CooldownCapped(t *testing.T) {
	clock := newFakeClock()
	reg := telemetry.NewRegistry().WithClock(clock.Now)
	recordFailures(reg, "schedule", 30)

	stats := reg.Stats("schedule")
	if got := stats.CooldownUntil.Sub(clock.Now()); got != 5*time.Minute {
		t.Errorf("cooldown = %v, want 5m cap", got)
	}
}

func TestRegistry_UnknownProvider(t *testing.T) {
	reg := telemetry.NewRegistry()
	if reg.InCooldown("never-seen") {
		t.Error("unknown provider cannot be cooling down")
	}
	if len(reg.AllStats()) != 0 {
		t.Error("InCooldown must not register providers")
	}
}

func TestRegistry_LatencyPercentiles(t *testing.T) {
	reg := telemetry.NewRegistry()
	for i := 1; i <= 20; i++ {
		reg.RecordSuccess("category", time.Duration(i)*time.Millisecond)
	}
	stats := reg.Stats("category")
	if stats.AvgLatencyMs != 10.5 {
		t.Errorf("avg = %v, want 10.5", stats.AvgLatencyMs)
	}
	if stats.P95LatencyMs != 19 {
		t.Errorf("p95 = %v, want 19", stats.P95LatencyMs)
	}
}

func TestRegistry_LatencyWindowWraps(t *testing.T) {
	reg := telemetry.NewRegistry()
	for i := 0; i < 150; i++ {
		reg.RecordSuccess("bill", 1*time.Millisecond)
	}
	for i := 0; i < 100; i++ {
		reg.RecordSuccess("bill", 3*time.Millisecond)
	}
	if got := reg.Stats("bill").AvgLatencyMs; got != 3 {
		t.Errorf("window should hold only the last 100 samples, avg = %v", got)
	}
}

func TestRegistry_AllStatsSortedWithFallbacks(t *testing.T) {
	reg := telemetry.NewRegistry()
	reg.RecordFallback("schedule")
	reg.RecordSuccess("bill", time.Millisecond)
	reg.RecordFallback("schedule")

	all := reg.AllStats()
	if len(all) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(all))
	}
	if all[0].Name != "bill" || all[1].Name != "schedule" {
		t.Errorf("unexpected order: %s, %s", all[0].Name, all[1].Name)
	}
	if all[1].FallbackCount != 2 || all[1].TotalRequests != 0 {
		t.Errorf("fallbacks are not requests: %+v", all[1])
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	reg := telemetry.NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				reg.RecordSuccess("chat", time.Millisecond)
			} else {
				reg.RecordFailure("chat", "boom")
			}
			_ = reg.InCooldown("chat")
			_ = reg.AllStats()
		}(i)
	}
	wg.Wait()
	if got := reg.Stats("chat").TotalRequests; got != 50 {
		t.Errorf("expected 50 requests, got %d", got)
	}
}
