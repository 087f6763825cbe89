// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package handlers

import (
	"net/http"

	"familybudget/internal/config"

	"github.com/gin-gonic/gin"
)

type ChangelogHandler struct {
	Config *config.Config
}

func NewChangelogHandler(cfg *config.Config) *ChangelogHandler {
	return &ChangelogHandler{Config: cfg}
}

func (h *ChangelogHandler) Changelog(c *gin.Context) {
	data := pageData(c, h.Config, "changelog", "Có gì mới")
	data["Changelog"] = GetChangelog()
	c.HTML(http.StatusOK, "changelog.html", data)
}
