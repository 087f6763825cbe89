// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package handlers

import (
	"net/http"

	"familybudget/internal/budget"
	"familybudget/internal/config"
	"familybudget/internal/dbq"
	"familybudget/internal/ledger"
	"familybudget/internal/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const (
	dashboardTrendMonths = 6
	dashboardRecentCount = 8
)

type HomeHandler struct {
	Config *config.Config
	Budget *budget.Service
	Ledger *ledger.Service
}

func NewHomeHandler(cfg *config.Config, b *budget.Service, l *ledger.Service) *HomeHandler {
	return &HomeHandler{Config: cfg, Budget: b, Ledger: l}
}

type dashboard struct {
	Summary budget.MonthSummary
	Trend   []budget.TrendPoint
	Recent  []models.Transaction
	Loans   []models.Loan
	Totals  models.LoanTotals
}

func (h *HomeHandler) load(c *gin.Context, month string) (dashboard, error) {
	var d dashboard
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() (err error) { d.Summary, err = h.Budget.MonthSummary(ctx, month); return })
	g.Go(func() (err error) { d.Trend, err = h.Budget.Trend(ctx, dashboardTrendMonths); return })
	g.Go(func() (err error) { d.Recent, err = h.Budget.Recent(ctx, dashboardRecentCount); return })
	g.Go(func() (err error) { d.Loans, err = h.Ledger.List(ctx, dbq.LoanFilter{OpenOnly: true}); return })
	if err := g.Wait(); err != nil {
		return dashboard{}, err
	}
	d.Totals = ledger.Totals(d.Loans)
	return d, nil
}

func (h *HomeHandler) Index(c *gin.Context) {
	month := c.Query("month")
	d, err := h.load(c, month)
	if err != nil {
		status, msg := errorStatus(err)
		logIfInternal(c, status, err)
		renderError(c, status, msg)
		return
	}

	overdue := 0
	for _, l := range d.Loans {
		if l.Overdue {
			overdue++
		}
	}
	top, hasTop := d.Summary.TopCategory()

	data := pageData(c, h.Config, "dashboard", "Tổng quan")
	data["Summary"] = d.Summary
	data["Trend"] = d.Trend
	data["Recent"] = d.Recent
	data["Loans"] = d.Loans
	data["LoanTotals"] = d.Totals
	data["OverdueLoans"] = overdue
	data["TopCategory"] = top
	data["HasTopCategory"] = hasTop
	if prev, err := models.ShiftMonth(d.Summary.Month, -1); err == nil {
		data["PrevMonth"] = prev
	}
	if next, err := models.ShiftMonth(d.Summary.Month, 1); err == nil {
		data["NextMonth"] = next
	}
	c.HTML(http.StatusOK, "dashboard.html", data)
}
