// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package middleware

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	csrfCookieName = "_csrf"
	csrfFormField  = "csrf_token"
	CSRFHeaderName = "X-CSRF-Token"
	csrfTokenLen   = 32
	csrfMaxAge     = 12 * 3600
)

// CSRFMiddleware implements signed double-submit tokens: the cookie carries
// token.hmac, forms echo the token in csrf_token and scripts in X-CSRF-Token.
type CSRFMiddleware struct {
	secret []byte
	secure bool
}

func NewCSRFMiddleware(secret string, secureCookie bool) *CSRFMiddleware {
	return &CSRFMiddleware{
		secret: []byte(secret),
		secure: secureCookie,
	}
}

func (m *CSRFMiddleware) generateToken() string {
	b := make([]byte, csrfTokenLen)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (m *CSRFMiddleware) sign(token string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(token))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (m *CSRFMiddleware) signedToken(token string) string {
	return token + "." + m.sign(token)
}

func (m *CSRFMiddleware) verify(signed string) (string, bool) {
	i := strings.LastIndexByte(signed, '.')
	if i <= 0 {
		return "", false
	}
	token, sig := signed[:i], signed[i+1:]
	if !hmac.Equal([]byte(sig), []byte(m.sign(token))) {
		return "", false
	}
	return token, true
}

func isCSRFExempt(path string) bool {
	return path == "/api/health"
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

func (m *CSRFMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) {
			c.Set("csrf_token", m.ensureToken(c))
			c.Next()
			return
		}

		if isCSRFExempt(c.Request.URL.Path) {
			c.Next()
			return
		}

		cookie, err := c.Cookie(csrfCookieName)
		if err != nil || cookie == "" {
			m.reject(c, "missing CSRF cookie")
			return
		}

		token, valid := m.verify(cookie)
		if !valid {
			m.reject(c, "invalid CSRF cookie signature")
			return
		}

		submitted := c.GetHeader(CSRFHeaderName)
		if submitted == "" {
			// PostForm also parses multipart bodies.
			submitted = c.PostForm(csrfFormField)
		}

		if submitted == "" || !hmac.Equal([]byte(submitted), []byte(token)) {
			m.reject(c, "CSRF token mismatch")
			return
		}

		c.Set("csrf_token", token)
		c.Next()
	}
}

func (m *CSRFMiddleware) ensureToken(c *gin.Context) string {
	if cookie, err := c.Cookie(csrfCookieName); err == nil && cookie != "" {
		if token, valid := m.verify(cookie); valid {
			return token
		}
	}

	token := m.generateToken()
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     csrfCookieName,
		Value:    m.signedToken(token),
		Path:     "/",
		MaxAge:   csrfMaxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
	return token
}

func (m *CSRFMiddleware) reject(c *gin.Context, reason string) {
	traceID, _ := c.Get("trace_id")
	slog.Warn("CSRF validation failed",
		"trace_id", traceID,
		"reason", reason,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"remote_addr", c.ClientIP(),
	)
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"error": "Phiên làm việc đã hết hạn, vui lòng tải lại trang.",
	})
}

func GetCSRFToken(c *gin.Context) string {
	return c.GetString("csrf_token")
}

// CSRFHiddenInput renders the form field templates embed in every POST form.
func CSRFHiddenInput(token string) template.HTML {
	return template.HTML(`<input type="hidden" name="` + csrfFormField + `" value="` + template.HTMLEscapeString(token) + `">`)
}
