// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"familybudget/internal/ai"
	"familybudget/internal/budget"
	"familybudget/internal/config"
	"familybudget/internal/ledger"
	"familybudget/internal/middleware"
	"familybudget/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// multipartOverhead leaves room for form fields next to the image.
const multipartOverhead = 1 << 20

type AssistantHandler struct {
	Config *config.Config
	Flows  *ai.Flows
	Budget *budget.Service
	Ledger *ledger.Service
}

func NewAssistantHandler(cfg *config.Config, flows *ai.Flows, b *budget.Service, l *ledger.Service) *AssistantHandler {
	return &AssistantHandler{Config: cfg, Flows: flows, Budget: b, Ledger: l}
}

func (h *AssistantHandler) Page(c *gin.Context) {
	data := pageData(c, h.Config, "assistant", "Trợ lý AI")
	data["AIEnabled"] = h.Flows.Enabled()
	data["Today"] = models.Today(h.Budget.Now())
	data["Month"] = models.CurrentMonth(h.Budget.Now())
	c.HTML(http.StatusOK, "assistant.html", data)
}

// readImage pulls the "image" file out of a multipart upload, refusing
// anything larger than ai.MaxImageBytes.
func readImage(c *gin.Context) ([]byte, string, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, ai.MaxImageBytes+multipartOverhead)
	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", &models.ValidationError{Field: "image", Message: "Ảnh tối đa 8MB"}
		}
		return nil, "", &models.ValidationError{Field: "image", Message: "Vui lòng chọn ảnh"}
	}
	if fh.Size > ai.MaxImageBytes {
		return nil, "", &models.ValidationError{Field: "image", Message: "Ảnh tối đa 8MB"}
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, ai.MaxImageBytes+1))
	if err != nil {
		return nil, "", err
	}
	return data, fh.Header.Get("Content-Type"), nil
}

func (h *AssistantHandler) Bill(c *gin.Context) {
	image, mime, err := readImage(c)
	if err != nil {
		apiError(c, err)
		return
	}
	uploadID := uuid.NewString()
	slog.Info("Bill upload received", "trace_id", middleware.TraceID(c.Request.Context()), "upload_id", uploadID, "bytes", len(image))
	res, err := h.Flows.ExtractBill(c.Request.Context(), image, mime)
	if err != nil {
		apiError(c, err)
		return
	}
	slog.Info("Bill extracted", "upload_id", uploadID, "fallback", res.Fallback, "confidence", res.Confidence)
	c.JSON(http.StatusOK, res)
}

func (h *AssistantHandler) Schedule(c *gin.Context) {
	image, mime, err := readImage(c)
	if err != nil {
		apiError(c, err)
		return
	}
	uploadID := uuid.NewString()
	slog.Info("Schedule upload received", "trace_id", middleware.TraceID(c.Request.Context()), "upload_id", uploadID, "bytes", len(image))
	res, err := h.Flows.ParseWorkSchedule(c.Request.Context(), image, mime,
		strings.TrimSpace(c.PostForm("month")), c.PostForm("person"))
	if err != nil {
		apiError(c, err)
		return
	}
	slog.Info("Schedule parsed", "upload_id", uploadID, "fallback", res.Fallback, "entries", len(res.Entries))
	c.JSON(http.StatusOK, res)
}

func (h *AssistantHandler) Category(c *gin.Context) {
	var in struct {
		Description string        `json:"description" binding:"required"`
		Type        models.TxType `json:"type"`
	}
	if !bindJSON(c, &in) {
		return
	}
	if in.Type == "" {
		in.Type = models.Expense
	}
	if !in.Type.Valid() {
		apiBadRequest(c, "Loại giao dịch phải là thu hoặc chi")
		return
	}
	res, err := h.Flows.SuggestCategory(c.Request.Context(), in.Description, in.Type)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AssistantHandler) Chat(c *gin.Context) {
	var in struct {
		Question string    `json:"question"`
		History  []ai.Turn `json:"history"`
	}
	if !bindJSON(c, &in) {
		return
	}
	ctx := c.Request.Context()
	cc, err := ai.LoadChatContext(ctx, h.Budget, h.Ledger)
	if err != nil {
		apiError(c, err)
		return
	}
	res, err := h.Flows.SpendingChat(ctx, in.Question, in.History, cc)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
