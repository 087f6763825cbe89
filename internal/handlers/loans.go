// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"familybudget/internal/config"
	"familybudget/internal/dbq"
	"familybudget/internal/ledger"
	"familybudget/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type LoanHandler struct {
	Config *config.Config
	Ledger *ledger.Service
}

func NewLoanHandler(cfg *config.Config, l *ledger.Service) *LoanHandler {
	return &LoanHandler{Config: cfg, Ledger: l}
}

func loanURL(id int64) string {
	return "/loans/" + strconv.FormatInt(id, 10)
}

func loanFilter(c *gin.Context) dbq.LoanFilter {
	return dbq.LoanFilter{
		Direction: models.LoanDirection(c.Query("direction")),
		Status:    models.LoanStatus(c.Query("status")),
		OpenOnly:  c.Query("open") == "1",
	}
}

func (h *LoanHandler) List(c *gin.Context) {
	f := loanFilter(c)
	loans, err := h.Ledger.List(c.Request.Context(), f)
	if err != nil {
		status, msg := errorStatus(err)
		logIfInternal(c, status, err)
		renderError(c, status, msg)
		return
	}
	data := pageData(c, h.Config, "loans", "Khoản vay")
	data["Loans"] = loans
	data["Totals"] = ledger.Totals(loans)
	data["Filter"] = f
	data["Today"] = models.Today(h.Ledger.Now())
	c.HTML(http.StatusOK, "loans.html", data)
}

func (h *LoanHandler) Detail(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	loan, err := h.Ledger.Get(ctx, id)
	if err == nil {
		var payments []models.LoanPayment
		payments, err = h.Ledger.Payments(ctx, id)
		if err == nil {
			data := pageData(c, h.Config, "loans", loan.Counterparty)
			data["Loan"] = loan
			data["Payments"] = payments
			data["Today"] = models.Today(h.Ledger.Now())
			c.HTML(http.StatusOK, "loan_detail.html", data)
			return
		}
	}
	status, msg := errorStatus(err)
	logIfInternal(c, status, err)
	renderError(c, status, msg)
}

func formDecimal(c *gin.Context, field string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(strings.ReplaceAll(c.PostForm(field), ",", "."))
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &models.ValidationError{Field: field, Message: "Giá trị số không hợp lệ"}
	}
	return d, nil
}

func loanFromForm(c *gin.Context) (models.Loan, error) {
	principal, err := formAmount(c, "principal")
	if err != nil {
		return models.Loan{}, err
	}
	rate, err := formDecimal(c, "interest_rate")
	if err != nil {
		return models.Loan{}, err
	}
	return models.Loan{
		Direction:    models.LoanDirection(c.PostForm("direction")),
		Counterparty: c.PostForm("counterparty"),
		Principal:    principal.Decimal,
		InterestRate: rate,
		StartDate:    strings.TrimSpace(c.PostForm("start_date")),
		DueDate:      c.PostForm("due_date"),
		Note:         c.PostForm("note"),
	}, nil
}

func (h *LoanHandler) Create(c *gin.Context) {
	l, err := loanFromForm(c)
	if err != nil {
		formError(c, err, "/loans")
		return
	}
	created, err := h.Ledger.CreateLoan(c.Request.Context(), l, currentUserID(c))
	if err != nil {
		formError(c, err, "/loans")
		return
	}
	formSuccess(c, "Đã thêm khoản vay với "+created.Counterparty, loanURL(created.ID))
}

func (h *LoanHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	l, err := loanFromForm(c)
	if err != nil {
		formError(c, err, loanURL(id))
		return
	}
	if _, err := h.Ledger.UpdateLoan(c.Request.Context(), id, l); err != nil {
		formError(c, err, loanURL(id))
		return
	}
	formSuccess(c, "Đã cập nhật khoản vay", loanURL(id))
}

func (h *LoanHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Ledger.DeleteLoan(c.Request.Context(), id); err != nil {
		formError(c, err, loanURL(id))
		return
	}
	formSuccess(c, "Đã xóa khoản vay", "/loans")
}

func (h *LoanHandler) AddPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	amount, err := formAmount(c, "amount")
	if err != nil {
		formError(c, err, loanURL(id))
		return
	}
	_, loan, err := h.Ledger.RecordPayment(c.Request.Context(), ledger.PaymentInput{
		LoanID:            id,
		Amount:            amount.Decimal,
		Date:              strings.TrimSpace(c.PostForm("date")),
		Note:              c.PostForm("note"),
		RecordTransaction: formChecked(c, "record_transaction"),
		UserID:            currentUserID(c),
	})
	if err != nil {
		formError(c, err, loanURL(id))
		return
	}
	msg := "Đã ghi nhận " + models.FormatVND(amount.Decimal) + ", còn lại " + models.FormatVND(loan.RemainingAmount)
	if loan.Status == models.LoanPaid {
		msg = "Khoản vay đã được trả hết"
	}
	formSuccess(c, msg, loanURL(id))
}

func (h *LoanHandler) DeletePayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	pid, ok := paramID(c, "pid")
	if !ok {
		return
	}
	if _, err := h.Ledger.DeletePayment(c.Request.Context(), id, pid); err != nil {
		formError(c, err, loanURL(id))
		return
	}
	formSuccess(c, "Đã hủy lần trả", loanURL(id))
}

// JSON API

type loanInput struct {
	Direction    models.LoanDirection `json:"direction"`
	Counterparty string               `json:"counterparty"`
	Principal    models.Amount        `json:"principal"`
	InterestRate decimal.Decimal      `json:"interest_rate"`
	StartDate    string               `json:"start_date"`
	DueDate      string               `json:"due_date"`
	Note         string               `json:"note"`
}

func (in loanInput) model() models.Loan {
	return models.Loan{
		Direction:    in.Direction,
		Counterparty: in.Counterparty,
		Principal:    in.Principal.Decimal,
		InterestRate: in.InterestRate,
		StartDate:    strings.TrimSpace(in.StartDate),
		DueDate:      in.DueDate,
		Note:         in.Note,
	}
}

type paymentInput struct {
	Amount            models.Amount `json:"amount"`
	Date              string        `json:"date"`
	Note              string        `json:"note"`
	RecordTransaction *bool         `json:"record_transaction"`
}

func (h *LoanHandler) APIList(c *gin.Context) {
	loans, err := h.Ledger.List(c.Request.Context(), loanFilter(c))
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loans": loans, "totals": ledger.Totals(loans)})
}

func (h *LoanHandler) APIGet(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	loan, err := h.Ledger.Get(c.Request.Context(), id)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

func (h *LoanHandler) APICreate(c *gin.Context) {
	var in loanInput
	if !bindJSON(c, &in) {
		return
	}
	loan, err := h.Ledger.CreateLoan(c.Request.Context(), in.model(), currentUserID(c))
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusCreated, loan)
}

func (h *LoanHandler) APIUpdate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in loanInput
	if !bindJSON(c, &in) {
		return
	}
	loan, err := h.Ledger.UpdateLoan(c.Request.Context(), id, in.model())
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

func (h *LoanHandler) APIDelete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Ledger.DeleteLoan(c.Request.Context(), id); err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *LoanHandler) APIPayments(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.Ledger.Get(ctx, id); err != nil {
		apiError(c, err)
		return
	}
	payments, err := h.Ledger.Payments(ctx, id)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

func (h *LoanHandler) APIAddPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in paymentInput
	if !bindJSON(c, &in) {
		return
	}
	record := in.RecordTransaction == nil || *in.RecordTransaction
	payment, loan, err := h.Ledger.RecordPayment(c.Request.Context(), ledger.PaymentInput{
		LoanID:            id,
		Amount:            in.Amount.Decimal,
		Date:              strings.TrimSpace(in.Date),
		Note:              in.Note,
		RecordTransaction: record,
		UserID:            currentUserID(c),
	})
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"payment": payment, "loan": loan})
}

func (h *LoanHandler) APIDeletePayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	pid, ok := paramID(c, "pid")
	if !ok {
		return
	}
	loan, err := h.Ledger.DeletePayment(c.Request.Context(), id, pid)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": pid, "loan": loan})
}
