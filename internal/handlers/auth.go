// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"familybudget/internal/auth"
	"familybudget/internal/config"
	"familybudget/internal/db"
	"familybudget/internal/dbq"
	"familybudget/internal/middleware"
	"familybudget/internal/models"

	"github.com/gin-gonic/gin"
)

const msgBadLogin = "Tên đăng nhập hoặc mật khẩu không đúng"

type AuthHandler struct {
	Config *config.Config
	DB     *db.Database
	Now    func() time.Time
}

func NewAuthHandler(cfg *config.Config, database *db.Database) *AuthHandler {
	return &AuthHandler{Config: cfg, DB: database, Now: time.Now}
}

func (h *AuthHandler) needsSetup(ctx context.Context) (bool, error) {
	n, err := h.DB.Queries.CountUsers(ctx)
	return n == 0, err
}

func (h *AuthHandler) startSession(c *gin.Context, userID int64) error {
	id, err := auth.NewSessionID()
	if err != nil {
		return err
	}
	if err := h.DB.Queries.CreateSession(c.Request.Context(), dbq.CreateSessionParams{
		ID:        id,
		UserID:    userID,
		ExpiresAt: h.Now().Add(middleware.SessionMaxAge),
	}); err != nil {
		return err
	}
	middleware.SetSessionCookie(c, id, h.Config.SecureCookies)
	return nil
}

func (h *AuthHandler) LoginPage(c *gin.Context) {
	if c.GetBool("authenticated") {
		c.Redirect(http.StatusFound, "/")
		return
	}
	if setup, err := h.needsSetup(c.Request.Context()); err == nil && setup {
		c.Redirect(http.StatusFound, "/setup")
		return
	}
	data := pageData(c, h.Config, "login", "Đăng nhập")
	data["Next"] = c.Query("next")
	c.HTML(http.StatusOK, "login.html", data)
}

func (h *AuthHandler) renderLoginError(c *gin.Context, status int, username, msg string) {
	data := pageData(c, h.Config, "login", "Đăng nhập")
	data["Next"] = c.PostForm("next")
	data["Username"] = username
	data["FlashMessages"] = []middleware.FlashMessage{{Category: "danger", Message: msg}}
	c.HTML(status, "login.html", data)
}

func (h *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()
	username := strings.ToLower(strings.TrimSpace(c.PostForm("username")))
	password := c.PostForm("password")

	user, err := h.DB.Queries.GetUserByUsername(ctx, username)
	if err != nil && !errors.Is(err, dbq.ErrNotFound) {
		slog.Error("Login lookup failed", "trace_id", middleware.TraceID(ctx), "error", err)
		h.renderLoginError(c, http.StatusInternalServerError, username, msgInternal)
		return
	}
	if err != nil || !auth.VerifyPassword(password, user.PasswordHash) {
		slog.Warn("Login failed", "trace_id", middleware.TraceID(ctx), "username", username, "remote_addr", c.ClientIP())
		h.renderLoginError(c, http.StatusUnauthorized, username, msgBadLogin)
		return
	}

	if auth.NeedsRehash(user.PasswordHash) {
		if hash, err := auth.HashPassword(password); err == nil {
			if err := h.DB.Queries.UpdateUserPassword(ctx, user.ID, hash); err != nil {
				slog.Warn("Password rehash failed", "user_id", user.ID, "error", err)
			}
		}
	}

	if err := h.startSession(c, user.ID); err != nil {
		slog.Error("Failed to create session", "trace_id", middleware.TraceID(ctx), "error", err)
		h.renderLoginError(c, http.StatusInternalServerError, username, msgInternal)
		return
	}

	slog.Info("User signed in", "user_id", user.ID, "username", user.Username)
	c.Redirect(http.StatusSeeOther, safeRedirect(c.PostForm("next"), "/"))
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if id := c.GetString("session_id"); id != "" {
		if err := h.DB.Queries.DeleteSession(c.Request.Context(), id); err != nil {
			slog.Warn("Failed to delete session", "error", err)
		}
	}
	middleware.SetSessionCookie(c, "", h.Config.SecureCookies)
	c.Redirect(http.StatusSeeOther, "/login")
}

func (h *AuthHandler) SetupPage(c *gin.Context) {
	setup, err := h.needsSetup(c.Request.Context())
	if err != nil {
		renderError(c, http.StatusInternalServerError, msgInternal)
		return
	}
	if !setup {
		c.Redirect(http.StatusFound, "/login")
		return
	}
	c.HTML(http.StatusOK, "setup.html", pageData(c, h.Config, "setup", "Thiết lập lần đầu"))
}

// Setup creates the first administrator. It only works while no user exists.
func (h *AuthHandler) Setup(c *gin.Context) {
	ctx := c.Request.Context()
	setup, err := h.needsSetup(ctx)
	if err != nil {
		formError(c, err, "/setup")
		return
	}
	if !setup {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}

	user, err := auth.CreateAccount(ctx, h.DB.Queries, auth.AccountInput{
		Username:    c.PostForm("username"),
		DisplayName: c.PostForm("display_name"),
		Password:    c.PostForm("password"),
		Confirm:     c.PostForm("confirm"),
		Role:        models.RoleAdmin,
	})
	if err != nil {
		formError(c, err, "/setup")
		return
	}
	slog.Info("Initial administrator created", "user_id", user.ID, "username", user.Username)

	if err := h.startSession(c, user.ID); err != nil {
		formError(c, err, "/login")
		return
	}
	formSuccess(c, "Chào mừng "+user.DisplayName+"! Tài khoản quản trị đã được tạo.", "/")
}

func (h *AuthHandler) AccountPage(c *gin.Context) {
	c.HTML(http.StatusOK, "account.html", pageData(c, h.Config, "account", "Tài khoản"))
}

// ChangePassword updates the signed-in user's password and signs out their
// other sessions.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)
	user, err := h.DB.Queries.GetUser(ctx, userID)
	if err != nil {
		formError(c, err, "/account")
		return
	}
	if !auth.VerifyPassword(c.PostForm("current_password"), user.PasswordHash) {
		middleware.SetFlash(c, "danger", "Mật khẩu hiện tại không đúng")
		c.Redirect(http.StatusSeeOther, "/account")
		return
	}
	password := c.PostForm("password")
	if err := auth.CheckNewPassword(password, c.PostForm("confirm")); err != nil {
		formError(c, err, "/account")
		return
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		formError(c, err, "/account")
		return
	}
	if err := h.DB.Queries.UpdateUserPassword(ctx, userID, hash); err != nil {
		formError(c, err, "/account")
		return
	}
	if err := h.DB.Queries.DeleteUserSessions(ctx, userID, c.GetString("session_id")); err != nil {
		slog.Warn("Failed to revoke other sessions", "user_id", userID, "error", err)
	}
	slog.Info("Password changed", "user_id", userID)
	formSuccess(c, "Đã đổi mật khẩu", "/account")
}
