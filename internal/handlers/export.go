// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"familybudget/internal/budget"
	"familybudget/internal/models"

	"github.com/gin-gonic/gin"
)

const exportFlushEvery = 100

type ExportHandler struct {
	Budget *budget.Service
}

func NewExportHandler(b *budget.Service) *ExportHandler {
	return &ExportHandler{Budget: b}
}

// ExportTransactions streams transactions as NDJSON, one object per line,
// oldest first. ?month=YYYY-MM limits the export to one month.
func (h *ExportHandler) ExportTransactions(c *gin.Context) {
	month := c.Query("month")
	if month != "" {
		if _, err := models.ParseMonth(month); err != nil {
			apiError(c, err)
			return
		}
	}

	timestamp := time.Now().UTC().Format("20060102_150405")
	filename := fmt.Sprintf("thu_chi_%s.ndjson", timestamp)
	if month != "" {
		filename = fmt.Sprintf("thu_chi_%s_%s.ndjson", month, timestamp)
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Status(http.StatusOK)

	enc := json.NewEncoder(c.Writer)
	written := 0
	n, err := h.Budget.Export(c.Request.Context(), month, func(t models.Transaction) error {
		if err := enc.Encode(t); err != nil {
			return err
		}
		written++
		if written%exportFlushEvery == 0 {
			c.Writer.Flush()
		}
		return nil
	})
	c.Writer.Flush()
	if err != nil {
		slog.Warn("Export interrupted", "trace_id", c.GetString("trace_id"), "written", n, "error", err)
		return
	}
	slog.Info("Transactions exported", "month", month, "count", n, "user_id", currentUserID(c))
}
