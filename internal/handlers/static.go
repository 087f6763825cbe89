// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StaticHandler serves the small root-level files browsers ask for. The
// site is private, so robots are turned away everywhere.
type StaticHandler struct {
	AppName string
}

func NewStaticHandler(appName string) *StaticHandler {
	return &StaticHandler{AppName: appName}
}

func (h *StaticHandler) RobotsTxt(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte("User-agent: *\nDisallow: /\n"))
}

func (h *StaticHandler) ManifestJSON(c *gin.Context) {
	c.Header("Content-Type", "application/manifest+json")
	c.JSON(http.StatusOK, gin.H{
		"name":             h.AppName,
		"short_name":       "Chi tiêu",
		"lang":             "vi",
		"start_url":        "/",
		"display":          "standalone",
		"background_color": "#ffffff",
		"theme_color":      "#2f855a",
		"icons": []gin.H{
			{"src": "/static/icon.svg", "sizes": "any", "type": "image/svg+xml"},
		},
	})
}
