// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package auth

import (
	"context"
	"strings"

	"familybudget/internal/dbq"
	"familybudget/internal/models"
)

// CheckNewPassword validates a new password and its confirmation.
func CheckNewPassword(password, confirm string) error {
	if err := models.ValidatePassword(password); err != nil {
		return err
	}
	if password != confirm {
		return &models.ValidationError{Field: "confirm", Message: "Mật khẩu nhập lại không khớp"}
	}
	return nil
}

type AccountInput struct {
	Username    string
	DisplayName string
	Password    string
	Confirm     string
	Role        string
}

// CreateAccount validates and stores a new user. It is shared by first-run
// setup, the admin user page and the CLI.
func CreateAccount(ctx context.Context, q *dbq.Queries, in AccountInput) (models.User, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	if err := models.ValidateUsername(username); err != nil {
		return models.User{}, err
	}
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		name = username
	}
	if len([]rune(name)) > models.MaxNameLen {
		return models.User{}, &models.ValidationError{Field: "display_name", Message: "Tên hiển thị quá dài"}
	}
	if err := CheckNewPassword(in.Password, in.Confirm); err != nil {
		return models.User{}, err
	}
	role := in.Role
	if role != models.RoleAdmin {
		role = models.RoleMember
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return models.User{}, err
	}
	user, err := q.CreateUser(ctx, dbq.CreateUserParams{
		Username:     username,
		DisplayName:  name,
		PasswordHash: hash,
		Role:         role,
	})
	if dbq.IsUniqueViolation(err) {
		return models.User{}, &models.ValidationError{Field: "username", Message: "Tên đăng nhập đã được sử dụng"}
	}
	return user, err
}
