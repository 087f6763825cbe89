// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const Version = "1.4.2"

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"

	defaultGeminiModel = "gemini-2.0-flash"
	defaultSQLitePath  = "data/budget.db"
)

type Config struct {
	Backend         string
	DatabaseURL     string
	SQLitePath      string
	SessionSecret   string
	Port            string
	AppVersion      string
	GeminiAPIKey    string
	GeminiModel     string
	AITimeout       time.Duration
	InitialAdmin    string
	InitialPassword string
	MaintenanceNote string
	SecureCookies   bool
}

// AIEnabled reports whether an API key was configured. Without one every AI
// flow answers with its fallback.
func (c *Config) AIEnabled() bool {
	return c.GeminiAPIKey != ""
}

// LoadDotEnv reads an optional .env file from the working directory.
// Existing environment variables always win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// LoadDatabase reads only the storage settings. The CLI uses it so that
// maintenance commands run without the web server's secrets.
func LoadDatabase() (*Config, error) {
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("DB_BACKEND")))
	if backend == "" {
		backend = BackendSQLite
	}
	if backend != BackendSQLite && backend != BackendPostgres {
		return nil, fmt.Errorf("DB_BACKEND must be %q or %q, got %q", BackendSQLite, BackendPostgres, backend)
	}

	dbURL := os.Getenv("DATABASE_URL")
	if backend == BackendPostgres && dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required for the postgres backend")
	}

	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = defaultSQLitePath
	}

	return &Config{
		Backend:     backend,
		DatabaseURL: dbURL,
		SQLitePath:  sqlitePath,
		AppVersion:  Version,
	}, nil
}

func Load() (*Config, error) {
	cfg, err := LoadDatabase()
	if err != nil {
		return nil, err
	}

	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET environment variable is required")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "5000"
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}

	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = defaultGeminiModel
	}

	aiTimeout := 30 * time.Second
	if v := os.Getenv("AI_TIMEOUT_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("AI_TIMEOUT_SECONDS must be a positive integer, got %q", v)
		}
		aiTimeout = time.Duration(secs) * time.Second
	}

	appVersion := os.Getenv("APP_VERSION")
	if appVersion == "" {
		appVersion = Version
	}

	cfg.SessionSecret = sessionSecret
	cfg.Port = port
	cfg.AppVersion = appVersion
	cfg.GeminiAPIKey = apiKey
	cfg.GeminiModel = model
	cfg.AITimeout = aiTimeout
	cfg.InitialAdmin = strings.TrimSpace(os.Getenv("INITIAL_ADMIN_USERNAME"))
	cfg.InitialPassword = os.Getenv("INITIAL_ADMIN_PASSWORD")
	cfg.MaintenanceNote = os.Getenv("MAINTENANCE_NOTE")
	cfg.SecureCookies = os.Getenv("INSECURE_COOKIES") != "1"
	return cfg, nil
}
