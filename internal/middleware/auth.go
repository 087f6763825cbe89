// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"familybudget/internal/dbq"
	"familybudget/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	SessionCookieName = "_budget_session"
	SessionMaxAge     = 30 * 24 * time.Hour
)

// SetSessionCookie stores the session id; an empty id clears it.
func SetSessionCookie(c *gin.Context, id string, secure bool) {
	maxAge := int(SessionMaxAge.Seconds())
	if id == "" {
		maxAge = -1
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func SessionLoader(queries *dbq.Queries) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(SessionCookieName)
		if err != nil || cookie == "" {
			c.Next()
			return
		}

		session, err := queries.GetSession(c.Request.Context(), cookie)
		if err != nil {
			if !errors.Is(err, dbq.ErrNotFound) {
				slog.Warn("Session lookup failed", "trace_id", TraceID(c.Request.Context()), "error", err)
			}
			c.Next()
			return
		}

		c.Set("user_id", session.UserID)
		c.Set("user_username", session.Username)
		c.Set("user_name", session.DisplayName)
		c.Set("user_role", session.Role)
		c.Set("session_id", session.ID)
		c.Set("authenticated", true)

		go func(token string) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = queries.UpdateSessionLastSeen(ctx, token)
		}(cookie)

		c.Next()
	}
}

// CurrentUser returns the signed-in user as loaded by SessionLoader.
func CurrentUser(c *gin.Context) (models.User, bool) {
	if !c.GetBool("authenticated") {
		return models.User{}, false
	}
	return models.User{
		ID:          c.GetInt64("user_id"),
		Username:    c.GetString("user_username"),
		DisplayName: c.GetString("user_name"),
		Role:        c.GetString("user_role"),
	}, true
}

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetBool("authenticated") {
			c.Next()
			return
		}
		if IsAPI(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Vui lòng đăng nhập",
			})
			return
		}
		target := "/login"
		if c.Request.Method == http.MethodGet && c.Request.URL.Path != "/" {
			target += "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
		}
		c.Redirect(http.StatusFound, target)
		c.Abort()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool("authenticated") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Vui lòng đăng nhập",
			})
			return
		}
		if c.GetString("user_role") != models.RoleAdmin {
			if IsAPI(c) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error": "Chỉ quản trị viên mới có quyền này",
				})
				return
			}
			SetFlash(c, "danger", "Chỉ quản trị viên mới có quyền này")
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}
		c.Next()
	}
}
