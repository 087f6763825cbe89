// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package main

import (
	"bufio"
	"encoding/json"

	"familybudget/internal/budget"
	"familybudget/internal/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newExportCmd() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write transactions as NDJSON to stdout",
		Example: `  budgetctl export > all.ndjson
  budgetctl export --month 2026-10 > thang10.ndjson`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if month != "" {
				if _, err := models.ParseMonth(month); err != nil {
					return err
				}
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			database, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close()

			w := bufio.NewWriter(cmd.OutOrStdout())
			enc := json.NewEncoder(w)
			svc := budget.NewService(database, models.MustLoadCategories())
			n, err := svc.Export(ctx, month, func(t models.Transaction) error {
				return enc.Encode(t)
			})
			if ferr := w.Flush(); err == nil {
				err = ferr
			}
			if err != nil {
				return err
			}
			logger.Info("Transactions exported", zap.String("month", month), zap.Int("count", n))
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "Only this month (YYYY-MM)")
	return cmd
}
