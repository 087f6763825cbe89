// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"familybudget/internal/config"
	"familybudget/internal/middleware"

	"github.com/gin-gonic/gin"
)

// pageData is the base map every page template receives.
func pageData(c *gin.Context, cfg *config.Config, activePage, title string) gin.H {
	nonce, _ := c.Get("csp_nonce")
	user, authenticated := middleware.CurrentUser(c)
	data := gin.H{
		"AppVersion":      cfg.AppVersion,
		"CspNonce":        nonce,
		"CsrfToken":       middleware.GetCSRFToken(c),
		"ActivePage":      activePage,
		"Title":           title,
		"FlashMessages":   middleware.PopFlash(c),
		"MaintenanceNote": cfg.MaintenanceNote,
		"Authenticated":   authenticated,
	}
	if authenticated {
		data["User"] = user
		data["IsAdmin"] = user.IsAdmin()
	}
	return data
}

const configKey = "app_config"

var defaultPageConfig = &config.Config{AppVersion: config.Version}

// withConfig lets renderError find the router's config outside a handler
// struct.
func withConfig(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(configKey, cfg)
		c.Next()
	}
}

func requestConfig(c *gin.Context) *config.Config {
	if v, ok := c.Get(configKey); ok {
		if cfg, ok := v.(*config.Config); ok && cfg != nil {
			return cfg
		}
	}
	return defaultPageConfig
}

func renderError(c *gin.Context, status int, message string) {
	data := pageData(c, requestConfig(c), "", "Lỗi")
	data["Status"] = status
	data["Message"] = message
	data["TraceID"] = c.GetString("trace_id")
	c.HTML(status, "error.html", data)
	c.Abort()
}

func notFoundPage(c *gin.Context) {
	if middleware.IsAPI(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": msgNotFound})
		return
	}
	renderError(c, http.StatusNotFound, "Không tìm thấy trang bạn yêu cầu.")
}

type PaginationData struct {
	CurrentPage int
	TotalPages  int
	HasPrev     bool
	HasNext     bool
	PrevURL     string
	NextURL     string
	Pages       []PageItem
	Total       int64
}

type PageItem struct {
	Number   int
	URL      string
	IsActive bool
	IsGap    bool
}

// BuildPagination keeps the current filters in every page link.
func BuildPagination(currentPage, totalPages int, total int64, query url.Values) PaginationData {
	link := func(page int) string {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("page", strconv.Itoa(page))
		return "?" + q.Encode()
	}
	pd := PaginationData{
		CurrentPage: currentPage,
		TotalPages:  totalPages,
		HasPrev:     currentPage > 1,
		HasNext:     currentPage < totalPages,
		Total:       total,
	}
	if pd.HasPrev {
		pd.PrevURL = link(currentPage - 1)
	}
	if pd.HasNext {
		pd.NextURL = link(currentPage + 1)
	}
	for _, p := range iterPages(currentPage, totalPages) {
		if !p.IsGap {
			p.URL = link(p.Number)
		}
		pd.Pages = append(pd.Pages, p)
	}
	return pd
}

func iterPages(currentPage, totalPages int) []PageItem {
	var pages []PageItem
	leftEdge := 1
	rightEdge := 1
	leftCurrent := 2
	rightCurrent := 2

	lastWasGap := false
	for i := 1; i <= totalPages; i++ {
		if i <= leftEdge || i > totalPages-rightEdge ||
			(i >= currentPage-leftCurrent && i <= currentPage+rightCurrent) {
			pages = append(pages, PageItem{Number: i, IsActive: i == currentPage})
			lastWasGap = false
		} else if !lastWasGap {
			pages = append(pages, PageItem{IsGap: true})
			lastWasGap = true
		}
	}
	return pages
}
