// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"familybudget/internal/budget"
	"familybudget/internal/dbq"
	"familybudget/internal/ledger"
	"familybudget/internal/middleware"
	"familybudget/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	msgInternal   = "Đã xảy ra lỗi hệ thống, vui lòng thử lại."
	msgNotFound   = "Không tìm thấy dữ liệu"
	msgBadPayload = "Dữ liệu gửi lên không hợp lệ"
)

var ledgerMessages = []struct {
	err    error
	status int
	msg    string
}{
	{ledger.ErrInvalidAmount, http.StatusBadRequest, "Số tiền trả phải lớn hơn 0"},
	{ledger.ErrOverpayment, http.StatusBadRequest, "Số tiền trả vượt quá số còn lại của khoản vay"},
	{ledger.ErrPrincipalBelowPaid, http.StatusBadRequest, "Số tiền gốc không được nhỏ hơn số đã trả"},
	{ledger.ErrLoanClosed, http.StatusConflict, "Khoản vay này đã được trả hết"},
	{ledger.ErrLoanManaged, http.StatusConflict, "Giao dịch này được tạo từ khoản vay, hãy sửa hoặc xóa ở trang Khoản vay"},
	{ledger.ErrPaymentMismatch, http.StatusNotFound, "Không tìm thấy lần trả này"},
}

// errorStatus maps a service error to an HTTP status and a Vietnamese
// message safe to show to the user.
func errorStatus(err error) (int, string) {
	var (
		bulk *budget.BulkValidationError
		ve   *models.ValidationError
	)
	switch {
	case errors.As(err, &bulk):
		msg := bulk.Err.Error()
		if errors.As(bulk.Err, &ve) {
			msg = ve.Message
		}
		return http.StatusBadRequest, fmt.Sprintf("Dòng %d: %s", bulk.Index+1, msg)
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message
	case errors.Is(err, dbq.ErrNotFound):
		return http.StatusNotFound, msgNotFound
	case dbq.IsUniqueViolation(err):
		return http.StatusConflict, "Dữ liệu này đã tồn tại"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "Máy chủ đang bận, vui lòng thử lại sau."
	}
	for _, m := range ledgerMessages {
		if errors.Is(err, m.err) {
			return m.status, m.msg
		}
	}
	return http.StatusInternalServerError, msgInternal
}

func logIfInternal(c *gin.Context, status int, err error) {
	if status < http.StatusInternalServerError {
		return
	}
	slog.Error("Request failed",
		"trace_id", middleware.TraceID(c.Request.Context()),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"error", err,
	)
}

func apiError(c *gin.Context, err error) {
	status, msg := errorStatus(err)
	logIfInternal(c, status, err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func apiBadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// bindJSON decodes the body into v, answering 400 on failure.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			apiBadRequest(c, ve.Message)
		} else {
			apiBadRequest(c, msgBadPayload)
		}
		return false
	}
	return true
}

// formError flashes the error and sends the browser back to redirect.
func formError(c *gin.Context, err error, redirect string) {
	status, msg := errorStatus(err)
	logIfInternal(c, status, err)
	middleware.SetFlash(c, "danger", msg)
	c.Redirect(http.StatusSeeOther, redirect)
}

func formSuccess(c *gin.Context, msg, redirect string) {
	middleware.SetFlash(c, "success", msg)
	c.Redirect(http.StatusSeeOther, redirect)
}

// paramID parses a positive integer path parameter. A malformed id is a 404.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		if middleware.IsAPI(c) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": msgNotFound})
		} else {
			renderError(c, http.StatusNotFound, "Không tìm thấy trang bạn yêu cầu.")
		}
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}

// formAmount parses a typed VND amount, where "" is treated as zero.
func formAmount(c *gin.Context, field string) (models.Amount, error) {
	raw := strings.TrimSpace(c.PostForm(field))
	if raw == "" {
		return models.Amount{}, nil
	}
	d, err := models.ParseAmount(raw)
	if err != nil {
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			ve.Field = field
		}
		return models.Amount{}, err
	}
	return models.Amount{Decimal: d}, nil
}

func formChecked(c *gin.Context, field string) bool {
	v := c.PostForm(field)
	return v == "on" || v == "1" || v == "true"
}

func currentUserID(c *gin.Context) int64 {
	return c.GetInt64("user_id")
}

// safeRedirect only follows local absolute paths.
func safeRedirect(target, fallback string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}
