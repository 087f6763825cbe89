// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package middleware

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const flashCookieName = "_flash"

type FlashMessage struct {
	Category string
	Message  string
}

// SetFlash queues a message for the next rendered page. Messages are
// base64 encoded since cookie values cannot carry Vietnamese text.
func SetFlash(c *gin.Context, category, message string) {
	existing := readFlash(c)
	existing = append(existing, FlashMessage{Category: category, Message: message})
	parts := make([]string, 0, len(existing))
	for _, f := range existing {
		parts = append(parts, base64.RawURLEncoding.EncodeToString([]byte(f.Category+"\n"+f.Message)))
	}
	value := strings.Join(parts, ".")
	c.Set(flashCookieName, value)
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     flashCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func readFlash(c *gin.Context) []FlashMessage {
	var raw string
	if v, ok := c.Get(flashCookieName); ok {
		raw, _ = v.(string)
	} else {
		raw, _ = c.Cookie(flashCookieName)
	}
	if raw == "" {
		return nil
	}
	var out []FlashMessage
	for _, part := range strings.Split(raw, ".") {
		b, err := base64.RawURLEncoding.DecodeString(part)
		if err != nil {
			continue
		}
		category, message, ok := strings.Cut(string(b), "\n")
		if !ok || message == "" {
			continue
		}
		out = append(out, FlashMessage{Category: category, Message: message})
	}
	return out
}

// PopFlash returns the queued messages and clears the cookie.
func PopFlash(c *gin.Context) []FlashMessage {
	msgs := readFlash(c)
	if len(msgs) == 0 {
		return nil
	}
	c.Set(flashCookieName, "")
	http.SetCookie(c.Writer, &http.Cookie{
		Name:   flashCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	return msgs
}
