// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package config

import (
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	t.Setenv(key, value)
}

func baseEnv(t *testing.T) {
	t.Helper()
	setEnv(t, "DB_BACKEND", "")
	setEnv(t, "DATABASE_URL", "")
	setEnv(t, "SQLITE_PATH", "")
	setEnv(t, "SESSION_SECRET", "test-secret")
	setEnv(t, "PORT", "")
	setEnv(t, "GEMINI_API_KEY", "")
	setEnv(t, "GOOGLE_API_KEY", "")
	setEnv(t, "GEMINI_MODEL", "")
	setEnv(t, "AI_TIMEOUT_SECONDS", "")
	setEnv(t, "APP_VERSION", "")
}

func TestLoad_MissingSessionSecret(t *testing.T) {
	baseEnv(t)
	setEnv(t, "SESSION_SECRET", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing SESSION_SECRET")
	}
}

func TestLoad_Defaults(t *testing.T) {
	baseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend != BackendSQLite {
		t.Errorf("expected sqlite backend, got %s", cfg.Backend)
	}
	if cfg.SQLitePath != "data/budget.db" {
		t.Errorf("expected default sqlite path, got %s", cfg.SQLitePath)
	}
	if cfg.Port != "5000" {
		t.Errorf("expected default port 5000, got %s", cfg.Port)
	}
	if cfg.GeminiModel != "gemini-2.0-flash" {
		t.Errorf("expected default model, got %s", cfg.GeminiModel)
	}
	if cfg.AITimeout != 30*time.Second {
		t.Errorf("expected 30s AI timeout, got %s", cfg.AITimeout)
	}
	if cfg.AIEnabled() {
		t.Error("AI should be disabled without an API key")
	}
	if cfg.AppVersion != Version {
		t.Errorf("expected AppVersion=%s, got %s", Version, cfg.AppVersion)
	}
}

func TestLoad_PostgresRequiresURL(t *testing.T) {
	baseEnv(t)
	setEnv(t, "DB_BACKEND", "postgres")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for postgres backend without DATABASE_URL")
	}
}

func TestLoad_PostgresWithURL(t *testing.T) {
	baseEnv(t)
	setEnv(t, "DB_BACKEND", "Postgres")
	setEnv(t, "DATABASE_URL", "postgres://test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend != BackendPostgres {
		t.Errorf("expected postgres backend, got %s", cfg.Backend)
	}
}

func TestLoad_UnknownBackend(t *testing.T) {
	baseEnv(t)
	setEnv(t, "DB_BACKEND", "firestore")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestLoad_GoogleAPIKeyFallback(t *testing.T) {
	baseEnv(t)
	setEnv(t, "GOOGLE_API_KEY", "google-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GeminiAPIKey != "google-key" {
		t.Errorf("expected GOOGLE_API_KEY to be used, got %q", cfg.GeminiAPIKey)
	}
	if !cfg.AIEnabled() {
		t.Error("AI should be enabled with an API key")
	}
}

func TestLoad_AITimeout(t *testing.T) {
	baseEnv(t)
	setEnv(t, "AI_TIMEOUT_SECONDS", "12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AITimeout != 12*time.Second {
		t.Errorf("expected 12s, got %s", cfg.AITimeout)
	}

	setEnv(t, "AI_TIMEOUT_SECONDS", "abc")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid AI_TIMEOUT_SECONDS")
	}
}

func TestLoad_InitialAdminTrimmed(t *testing.T) {
	baseEnv(t)
	setEnv(t, "INITIAL_ADMIN_USERNAME", "  bo  ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.InitialAdmin != "bo" {
		t.Errorf("expected trimmed username, got '%s'", cfg.InitialAdmin)
	}
}

func TestLoad_MaintenanceNote(t *testing.T) {
	baseEnv(t)
	setEnv(t, "MAINTENANCE_NOTE", "Bảo trì lúc nửa đêm")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaintenanceNote != "Bảo trì lúc nửa đêm" {
		t.Errorf("expected maintenance note, got '%s'", cfg.MaintenanceNote)
	}
}

func TestLoadDatabase_WithoutSecret(t *testing.T) {
	baseEnv(t)
	setEnv(t, "SESSION_SECRET", "")
	setEnv(t, "SQLITE_PATH", "/tmp/budget-cli.db")

	cfg, err := LoadDatabase()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend != BackendSQLite || cfg.SQLitePath != "/tmp/budget-cli.db" {
		t.Errorf("got backend %q path %q", cfg.Backend, cfg.SQLitePath)
	}
	if cfg.SessionSecret != "" {
		t.Error("LoadDatabase should not read the session secret")
	}
}
