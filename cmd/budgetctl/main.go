// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.

// budgetctl administers the family budget database: schema, accounts,
// exports and demo data.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"familybudget/internal/config"
	"familybudget/internal/db"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const passwordEnv = "BUDGETCTL_PASSWORD"

var (
	verbose bool
	timeout time.Duration

	logger *zap.Logger
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "budgetctl",
		Short: "Administer the family budget database",
		Long: `budgetctl works directly on the database configured by DB_BACKEND,
SQLITE_PATH and DATABASE_URL (a .env file in the working directory is read
first). It does not need the web server to be running.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := zap.NewProductionConfig()
			if verbose {
				cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			var err error
			logger, err = cfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	root.AddCommand(newMigrateCmd())
	root.AddCommand(newUserCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newSeedDemoCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openDatabase connects using the storage settings only and applies the
// schema.
func openDatabase() (*db.Database, error) {
	config.LoadDotEnv()
	cfg, err := config.LoadDatabase()
	if err != nil {
		return nil, err
	}
	database, err := db.Open(cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug("Database opened", zap.String("backend", cfg.Backend), zap.String("sqlite_path", cfg.SQLitePath))
	return database, nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, timeout)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close()
			logger.Info("Schema is up to date", zap.String("dialect", string(database.Dialect)))
			return nil
		},
	}
}
