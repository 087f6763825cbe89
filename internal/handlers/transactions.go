// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"familybudget/internal/budget"
	"familybudget/internal/config"
	"familybudget/internal/models"

	"github.com/gin-gonic/gin"
)

type TransactionHandler struct {
	Config *config.Config
	Budget *budget.Service
}

func NewTransactionHandler(cfg *config.Config, b *budget.Service) *TransactionHandler {
	return &TransactionHandler{Config: cfg, Budget: b}
}

func listParams(c *gin.Context) budget.ListParams {
	return budget.ListParams{
		Month:    strings.TrimSpace(c.Query("month")),
		Type:     models.TxType(c.Query("type")),
		Category: strings.TrimSpace(c.Query("category")),
		Search:   strings.TrimSpace(c.Query("q")),
		Page:     queryInt(c, "page", 1),
		PerPage:  queryInt(c, "per_page", budget.DefaultPerPage),
	}
}

// transactionsURL returns the list page for the month of date.
func transactionsURL(date string) string {
	if len(date) >= 7 {
		return "/transactions?month=" + url.QueryEscape(date[:7])
	}
	return "/transactions"
}

func (h *TransactionHandler) List(c *gin.Context) {
	p := listParams(c)
	if p.Month == "" && c.Query("all") == "" {
		p.Month = models.CurrentMonth(h.Budget.Now())
	}
	page, err := h.Budget.List(c.Request.Context(), p)
	if err != nil {
		status, msg := errorStatus(err)
		logIfInternal(c, status, err)
		renderError(c, status, msg)
		return
	}

	filters := url.Values{}
	for _, kv := range [][2]string{{"month", p.Month}, {"type", string(p.Type)}, {"category", p.Category}, {"q", p.Search}} {
		if kv[1] != "" {
			filters.Set(kv[0], kv[1])
		}
	}

	data := pageData(c, h.Config, "transactions", "Thu chi")
	data["Page"] = page
	data["Filters"] = p
	data["Pagination"] = BuildPagination(page.Page, page.TotalPages, page.Total, filters)
	data["Today"] = models.Today(h.Budget.Now())
	if p.Month != "" {
		if sum, err := h.Budget.MonthSummary(c.Request.Context(), p.Month); err == nil {
			data["Summary"] = sum
		}
	}
	c.HTML(http.StatusOK, "transactions.html", data)
}

func transactionFromForm(c *gin.Context) (models.Transaction, error) {
	amount, err := formAmount(c, "amount")
	if err != nil {
		return models.Transaction{}, err
	}
	return models.Transaction{
		Type:        models.TxType(c.PostForm("type")),
		Amount:      amount.Decimal,
		Category:    c.PostForm("category"),
		Description: c.PostForm("description"),
		Date:        strings.TrimSpace(c.PostForm("date")),
		Source:      c.PostForm("source"),
	}, nil
}

func (h *TransactionHandler) Create(c *gin.Context) {
	back := safeRedirect(c.PostForm("return_to"), "/transactions")
	t, err := transactionFromForm(c)
	if err != nil {
		formError(c, err, back)
		return
	}
	created, err := h.Budget.Create(c.Request.Context(), t, currentUserID(c))
	if err != nil {
		formError(c, err, back)
		return
	}
	formSuccess(c, "Đã lưu giao dịch "+models.FormatVND(created.Amount), safeRedirect(c.PostForm("return_to"), transactionsURL(created.Date)))
}

func (h *TransactionHandler) Edit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	t, err := h.Budget.Get(c.Request.Context(), id)
	if err != nil {
		status, msg := errorStatus(err)
		logIfInternal(c, status, err)
		renderError(c, status, msg)
		return
	}
	data := pageData(c, h.Config, "transactions", "Sửa giao dịch")
	data["Transaction"] = t
	c.HTML(http.StatusOK, "transaction_edit.html", data)
}

func (h *TransactionHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	editURL := "/transactions/" + strconv.FormatInt(id, 10) + "/edit"
	t, err := transactionFromForm(c)
	if err != nil {
		formError(c, err, editURL)
		return
	}
	updated, err := h.Budget.Update(c.Request.Context(), id, t)
	if err != nil {
		formError(c, err, editURL)
		return
	}
	formSuccess(c, "Đã cập nhật giao dịch", transactionsURL(updated.Date))
}

func (h *TransactionHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	back := safeRedirect(c.PostForm("return_to"), "/transactions")
	if err := h.Budget.Delete(c.Request.Context(), id); err != nil {
		formError(c, err, back)
		return
	}
	formSuccess(c, "Đã xóa giao dịch", back)
}

// JSON API

type transactionInput struct {
	Type        models.TxType `json:"type" binding:"required,oneof=income expense"`
	Amount      models.Amount `json:"amount"`
	Category    string        `json:"category"`
	Description string        `json:"description"`
	Date        string        `json:"date"`
	Source      string        `json:"source"`
}

func (in transactionInput) model() models.Transaction {
	return models.Transaction{
		Type:        in.Type,
		Amount:      in.Amount.Decimal,
		Category:    in.Category,
		Description: in.Description,
		Date:        strings.TrimSpace(in.Date),
		Source:      in.Source,
	}
}

func (h *TransactionHandler) APIList(c *gin.Context) {
	page, err := h.Budget.List(c.Request.Context(), listParams(c))
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *TransactionHandler) APIGet(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	t, err := h.Budget.Get(c.Request.Context(), id)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TransactionHandler) APICreate(c *gin.Context) {
	var in transactionInput
	if !bindJSON(c, &in) {
		return
	}
	t, err := h.Budget.Create(c.Request.Context(), in.model(), currentUserID(c))
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *TransactionHandler) APIUpdate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in transactionInput
	if !bindJSON(c, &in) {
		return
	}
	t, err := h.Budget.Update(c.Request.Context(), id, in.model())
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TransactionHandler) APIDelete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Budget.Delete(c.Request.Context(), id); err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *TransactionHandler) APISummary(c *gin.Context) {
	sum, err := h.Budget.MonthSummary(c.Request.Context(), c.Query("month"))
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *TransactionHandler) APITrend(c *gin.Context) {
	points, err := h.Budget.Trend(c.Request.Context(), queryInt(c, "months", 6))
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"months": points})
}

func (h *TransactionHandler) APICategories(c *gin.Context) {
	cats := h.Budget.Categories
	c.JSON(http.StatusOK, gin.H{
		"income":  cats.For(models.Income),
		"expense": cats.For(models.Expense),
	})
}
