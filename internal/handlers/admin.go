// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package handlers

import (
	"log/slog"
	"net/http"

	"familybudget/internal/auth"
	"familybudget/internal/config"
	"familybudget/internal/db"
	"familybudget/internal/models"

	"github.com/gin-gonic/gin"
)

// AdminHandler manages family member accounts.
type AdminHandler struct {
	DB     *db.Database
	Config *config.Config
}

func NewAdminHandler(database *db.Database, cfg *config.Config) *AdminHandler {
	return &AdminHandler{DB: database, Config: cfg}
}

func (h *AdminHandler) Users(c *gin.Context) {
	users, err := h.DB.Queries.ListUsers(c.Request.Context())
	if err != nil {
		status, msg := errorStatus(err)
		logIfInternal(c, status, err)
		renderError(c, status, msg)
		return
	}
	data := pageData(c, h.Config, "users", "Thành viên")
	data["Users"] = users
	c.HTML(http.StatusOK, "users.html", data)
}

func (h *AdminHandler) CreateUser(c *gin.Context) {
	role := models.RoleMember
	if formChecked(c, "admin") {
		role = models.RoleAdmin
	}
	password := c.PostForm("password")
	user, err := auth.CreateAccount(c.Request.Context(), h.DB.Queries, auth.AccountInput{
		Username:    c.PostForm("username"),
		DisplayName: c.PostForm("display_name"),
		Password:    password,
		Confirm:     password,
		Role:        role,
	})
	if err != nil {
		formError(c, err, "/users")
		return
	}
	slog.Info("User created", "user_id", user.ID, "username", user.Username, "role", user.Role, "by", currentUserID(c))
	formSuccess(c, "Đã thêm thành viên "+user.DisplayName, "/users")
}

// SetRole promotes or demotes a member. Admins cannot demote themselves so
// the family always keeps one administrator.
func (h *AdminHandler) SetRole(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	role := c.PostForm("role")
	if role != models.RoleAdmin && role != models.RoleMember {
		formError(c, &models.ValidationError{Field: "role", Message: "Quyền không hợp lệ"}, "/users")
		return
	}
	if id == currentUserID(c) && role != models.RoleAdmin {
		formError(c, &models.ValidationError{Field: "role", Message: "Bạn không thể tự bỏ quyền quản trị của mình"}, "/users")
		return
	}
	ctx := c.Request.Context()
	if _, err := h.DB.Queries.GetUser(ctx, id); err != nil {
		formError(c, err, "/users")
		return
	}
	if err := h.DB.Queries.UpdateUserRole(ctx, id, role); err != nil {
		formError(c, err, "/users")
		return
	}
	slog.Info("User role changed", "user_id", id, "role", role, "by", currentUserID(c))
	formSuccess(c, "Đã cập nhật quyền", "/users")
}

// ResetPassword sets a new password for a member who forgot theirs and
// signs them out everywhere.
func (h *AdminHandler) ResetPassword(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	password := c.PostForm("password")
	if err := auth.CheckNewPassword(password, password); err != nil {
		formError(c, err, "/users")
		return
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		formError(c, err, "/users")
		return
	}
	ctx := c.Request.Context()
	if _, err := h.DB.Queries.GetUser(ctx, id); err != nil {
		formError(c, err, "/users")
		return
	}
	if err := h.DB.Queries.UpdateUserPassword(ctx, id, hash); err != nil {
		formError(c, err, "/users")
		return
	}
	if err := h.DB.Queries.DeleteUserSessions(ctx, id, ""); err != nil {
		slog.Warn("Failed to revoke sessions", "user_id", id, "error", err)
	}
	slog.Info("Password reset by admin", "user_id", id, "by", currentUserID(c))
	formSuccess(c, "Đã đặt lại mật khẩu", "/users")
}
