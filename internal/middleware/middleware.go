// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package middleware

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type contextKey string

const (
	CSPNonceKey contextKey = "csp_nonce"
	TraceIDKey  contextKey = "trace_id"
)

func generateNonce() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}

// TraceID returns the request's short trace id, or "" outside a request.
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(TraceIDKey).(string)
	return id
}

// IsAPI reports whether the request targets the JSON API.
func IsAPI(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/api/")
}

func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		nonce := generateNonce()
		traceID := uuid.New().String()[:8]
		start := time.Now()

		c.Set("csp_nonce", nonce)
		c.Set("trace_id", traceID)
		c.Set("request_start", start)

		ctx := context.WithValue(c.Request.Context(), CSPNonceKey, nonce)
		ctx = context.WithValue(ctx, TraceIDKey, traceID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if strings.HasPrefix(c.Request.URL.Path, "/static/") {
			return
		}
		userID, _ := c.Get("user_id")
		slog.Info("Request completed",
			"trace_id", traceID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"user_id", userID,
			"duration_ms", fmt.Sprintf("%.1f", float64(time.Since(start).Microseconds())/1000.0),
		)
	}
}

func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		nonce, _ := c.Get("csp_nonce")
		nonceStr, _ := nonce.(string)

		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "same-origin")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), payment=(), usb=(), interest-cohort=()")
		c.Header("Cross-Origin-Opener-Policy", "same-origin")
		c.Header("Cross-Origin-Resource-Policy", "same-origin")

		upgradeDirective := ""
		if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
			c.Header("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
			upgradeDirective = "upgrade-insecure-requests;"
		}

		// Bill and schedule photos are previewed from blob: URLs before upload.
		csp := fmt.Sprintf(
			"default-src 'none'; "+
				"script-src 'self' 'nonce-%s'; "+
				"style-src 'self' 'nonce-%s'; "+
				"font-src 'self'; "+
				"img-src 'self' data: blob:; "+
				"connect-src 'self'; "+
				"frame-ancestors 'none'; "+
				"base-uri 'none'; "+
				"form-action 'self'; "+
				"manifest-src 'self'; "+
				"object-src 'none'; "+
				"%s",
			nonceStr, nonceStr, upgradeDirective,
		)
		c.Header("Content-Security-Policy", csp)

		if IsAPI(c) {
			c.Header("Cache-Control", "no-store")
		}

		c.Next()
	}
}

// Recovery turns a panic into a 500: JSON under /api, the error page
// elsewhere.
func Recovery(appVersion string) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				traceID, _ := c.Get("trace_id")
				slog.Error("Panic recovered",
					"trace_id", traceID,
					"error", fmt.Sprintf("%v", err),
					"path", c.Request.URL.Path,
				)
				if IsAPI(c) {
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"error": "Đã xảy ra lỗi hệ thống, vui lòng thử lại.",
					})
					return
				}
				nonce, _ := c.Get("csp_nonce")
				c.HTML(http.StatusInternalServerError, "error.html", gin.H{
					"AppVersion": appVersion,
					"CspNonce":   nonce,
					"Status":     http.StatusInternalServerError,
					"Message":    "Đã xảy ra lỗi hệ thống, vui lòng thử lại.",
					"TraceID":    traceID,
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}
