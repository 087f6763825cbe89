// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package handlers

import (
	"fmt"
	"net/http"

	"familybudget/internal/ai"
	"familybudget/internal/budget"
	"familybudget/internal/config"
	"familybudget/internal/db"
	"familybudget/internal/ledger"
	"familybudget/internal/middleware"
	"familybudget/internal/templates"

	"github.com/gin-gonic/gin"
)

const (
	appName            = "Chi tiêu gia đình"
	headerCacheControl = "Cache-Control"
)

// Services bundles what the routes need. Limiters default to the standard
// policies when nil.
type Services struct {
	Config       *config.Config
	DB           *db.Database
	Budget       *budget.Service
	Ledger       *ledger.Service
	Flows        *ai.Flows
	LoginLimiter middleware.RateLimiter
	AILimiter    middleware.RateLimiter
}

// Register loads the templates and static files and mounts every page and
// API route. Global middleware is applied by the caller; Register only adds
// the per-router config lookup used by error pages.
func Register(router *gin.Engine, s Services) error {
	tmpl, err := templates.Parse(s.Budget.Categories)
	if err != nil {
		return fmt.Errorf("parsing templates: %w", err)
	}
	router.SetHTMLTemplate(tmpl)
	router.Use(withConfig(s.Config))

	fileServer := http.StripPrefix("/static", http.FileServer(http.FS(templates.Static())))
	serveStatic := func(c *gin.Context) {
		if c.Query("v") != "" {
			c.Header(headerCacheControl, "public, max-age=31536000, immutable")
		} else {
			c.Header(headerCacheControl, "public, max-age=86400")
		}
		fileServer.ServeHTTP(c.Writer, c.Request)
	}
	router.GET("/static/*filepath", serveStatic)
	router.HEAD("/static/*filepath", serveStatic)

	if s.LoginLimiter == nil {
		s.LoginLimiter = middleware.NewInMemoryRateLimiter(middleware.LoginPolicy)
	}
	if s.AILimiter == nil {
		s.AILimiter = middleware.NewInMemoryRateLimiter(middleware.AIPolicy)
	}

	authH := NewAuthHandler(s.Config, s.DB)
	adminH := NewAdminHandler(s.DB, s.Config)
	homeH := NewHomeHandler(s.Config, s.Budget, s.Ledger)
	txH := NewTransactionHandler(s.Config, s.Budget)
	loanH := NewLoanHandler(s.Config, s.Ledger)
	noteH := NewNoteHandler(s.Config, s.Budget)
	calH := NewCalendarHandler(s.Config, s.Budget)
	aiH := NewAssistantHandler(s.Config, s.Flows, s.Budget, s.Ledger)
	healthH := NewHealthHandler(s.DB, s.Flows)
	exportH := NewExportHandler(s.Budget)
	staticH := NewStaticHandler(appName)
	changelogH := NewChangelogHandler(s.Config)

	router.GET("/robots.txt", staticH.RobotsTxt)
	router.GET("/manifest.json", staticH.ManifestJSON)
	router.GET("/api/health", healthH.HealthCheck)

	loginLimit := middleware.RateLimit(s.LoginLimiter, middleware.ClientIPKey)
	router.GET("/login", authH.LoginPage)
	router.POST("/login", loginLimit, authH.Login)
	router.GET("/setup", authH.SetupPage)
	router.POST("/setup", loginLimit, authH.Setup)

	pages := router.Group("/", middleware.RequireAuth())
	{
		pages.POST("/logout", authH.Logout)
		pages.GET("/", homeH.Index)

		pages.GET("/transactions", txH.List)
		pages.POST("/transactions", txH.Create)
		pages.GET("/transactions/:id/edit", txH.Edit)
		pages.POST("/transactions/:id", txH.Update)
		pages.POST("/transactions/:id/delete", txH.Delete)

		pages.GET("/loans", loanH.List)
		pages.POST("/loans", loanH.Create)
		pages.GET("/loans/:id", loanH.Detail)
		pages.POST("/loans/:id", loanH.Update)
		pages.POST("/loans/:id/delete", loanH.Delete)
		pages.POST("/loans/:id/payments", loanH.AddPayment)
		pages.POST("/loans/:id/payments/:pid/delete", loanH.DeletePayment)

		pages.GET("/notes", noteH.List)
		pages.POST("/notes", noteH.Create)
		pages.POST("/notes/:id", noteH.Update)
		pages.POST("/notes/:id/pin", noteH.TogglePin)
		pages.POST("/notes/:id/delete", noteH.Delete)

		pages.GET("/calendar", calH.Page)
		pages.POST("/calendar/events", calH.CreateEvent)
		pages.POST("/calendar/events/:id/delete", calH.DeleteEvent)
		pages.POST("/calendar/shifts", calH.CreateShift)
		pages.POST("/calendar/shifts/:id/delete", calH.DeleteShift)

		pages.GET("/assistant", aiH.Page)
		pages.GET("/changelog", changelogH.Changelog)
		pages.GET("/account", authH.AccountPage)
		pages.POST("/account/password", authH.ChangePassword)
		pages.GET("/export/transactions.ndjson", exportH.ExportTransactions)
	}

	admin := router.Group("/users", middleware.RequireAuth(), middleware.RequireAdmin())
	{
		admin.GET("", adminH.Users)
		admin.POST("", adminH.CreateUser)
		admin.POST("/:id/role", adminH.SetRole)
		admin.POST("/:id/password", adminH.ResetPassword)
	}

	api := router.Group("/api", middleware.RequireAuth())
	{
		api.GET("/transactions", txH.APIList)
		api.POST("/transactions", txH.APICreate)
		api.GET("/transactions/:id", txH.APIGet)
		api.PUT("/transactions/:id", txH.APIUpdate)
		api.DELETE("/transactions/:id", txH.APIDelete)
		api.GET("/summary", txH.APISummary)
		api.GET("/trend", txH.APITrend)
		api.GET("/categories", txH.APICategories)

		api.GET("/loans", loanH.APIList)
		api.POST("/loans", loanH.APICreate)
		api.GET("/loans/:id", loanH.APIGet)
		api.PUT("/loans/:id", loanH.APIUpdate)
		api.DELETE("/loans/:id", loanH.APIDelete)
		api.GET("/loans/:id/payments", loanH.APIPayments)
		api.POST("/loans/:id/payments", loanH.APIAddPayment)
		api.DELETE("/loans/:id/payments/:pid", loanH.APIDeletePayment)

		api.GET("/notes", noteH.APIList)
		api.POST("/notes", noteH.APICreate)
		api.GET("/notes/:id", noteH.APIGet)
		api.PUT("/notes/:id", noteH.APIUpdate)
		api.POST("/notes/:id/pin", noteH.APITogglePin)
		api.DELETE("/notes/:id", noteH.APIDelete)

		api.GET("/calendar", calH.APIMonth)
		api.GET("/events", calH.APIListEvents)
		api.POST("/events", calH.APICreateEvent)
		api.GET("/events/:id", calH.APIGetEvent)
		api.PUT("/events/:id", calH.APIUpdateEvent)
		api.DELETE("/events/:id", calH.APIDeleteEvent)
		api.GET("/shifts", calH.APIListShifts)
		api.POST("/shifts", calH.APICreateShift)
		api.POST("/shifts/bulk", calH.APIBulkShifts)
		api.GET("/shifts/:id", calH.APIGetShift)
		api.PUT("/shifts/:id", calH.APIUpdateShift)
		api.DELETE("/shifts/:id", calH.APIDeleteShift)

		aiGroup := api.Group("/ai", middleware.RateLimit(s.AILimiter, middleware.UserPayloadKey))
		aiGroup.POST("/bill", aiH.Bill)
		aiGroup.POST("/category", aiH.Category)
		aiGroup.POST("/chat", aiH.Chat)
		aiGroup.POST("/schedule", aiH.Schedule)
	}

	router.NoRoute(notFoundPage)
	return nil
}
