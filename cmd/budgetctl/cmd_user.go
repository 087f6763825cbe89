// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package main

import (
	"fmt"
	"os"
	"strings"

	"familybudget/internal/auth"
	"familybudget/internal/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newUserCmd() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage family member accounts",
	}
	userCmd.AddCommand(newUserAddCmd())
	userCmd.AddCommand(newUserPasswdCmd())
	userCmd.AddCommand(newUserListCmd())
	return userCmd
}

// passwordFrom prefers the flag, then the environment.
func passwordFrom(cmd *cobra.Command) (string, error) {
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv(passwordEnv)
	}
	if password == "" {
		return "", fmt.Errorf("password required: pass --password or set %s", passwordEnv)
	}
	return password, nil
}

func newUserAddCmd() *cobra.Command {
	var (
		name  string
		admin bool
	)
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an account",
		Example: `  budgetctl user add me --name "Mẹ" --admin --password 'mat-khau'
  BUDGETCTL_PASSWORD='mat-khau' budgetctl user add bo --name "Bố"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := passwordFrom(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			database, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close()

			role := models.RoleMember
			if admin {
				role = models.RoleAdmin
			}
			user, err := auth.CreateAccount(ctx, database.Queries, auth.AccountInput{
				Username:    args[0],
				DisplayName: name,
				Password:    password,
				Confirm:     password,
				Role:        role,
			})
			if err != nil {
				return err
			}
			logger.Info("User created",
				zap.Int64("user_id", user.ID),
				zap.String("username", user.Username),
				zap.String("role", user.Role))
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) id=%d\n", user.Username, user.Role, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the username)")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant the administrator role")
	cmd.Flags().String("password", "", "Password (or set "+passwordEnv+")")
	return cmd
}

func newUserPasswdCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Reset a password and sign the user out everywhere",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := passwordFrom(cmd)
			if err != nil {
				return err
			}
			if err := models.ValidatePassword(password); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			database, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close()

			username := strings.ToLower(strings.TrimSpace(args[0]))
			user, err := database.Queries.GetUserByUsername(ctx, username)
			if err != nil {
				return fmt.Errorf("looking up %q: %w", username, err)
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			if err := database.Queries.UpdateUserPassword(ctx, user.ID, hash); err != nil {
				return err
			}
			if err := database.Queries.DeleteUserSessions(ctx, user.ID, ""); err != nil {
				return err
			}
			logger.Info("Password reset", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
			fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s\n", user.Username)
			return nil
		},
	}
	cmd.Flags().String("password", "", "New password (or set "+passwordEnv+")")
	return cmd
}

func newUserListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			database, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close()

			users, err := database.Queries.ListUsers(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, u := range users {
				fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", u.ID, u.Username, u.Role, u.DisplayName)
			}
			return nil
		},
	}
}
