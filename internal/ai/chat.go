// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package ai

import (
	"context"
	"fmt"
	"strings"

	"familybudget/internal/budget"
	"familybudget/internal/dbq"
	"familybudget/internal/ledger"
	"familybudget/internal/models"

	"golang.org/x/sync/errgroup"
)

const (
	MaxHistoryTurns   = 10
	MaxQuestionLen    = 1000
	chatRecentTxCount = 30
	chatTrendMonths   = 3
)

// ChatContext is the household data the assistant answers from.
type ChatContext struct {
	Month     budget.MonthSummary
	Trend     []budget.TrendPoint
	Loans     []models.Loan
	LoanTotal models.LoanTotals
	Recent    []models.Transaction
}

type ChatResult struct {
	Answer   string `json:"answer"`
	Fallback bool   `json:"fallback"`
}

// LoadChatContext gathers the assistant's context concurrently.
func LoadChatContext(ctx context.Context, b *budget.Service, l *ledger.Service) (ChatContext, error) {
	var cc ChatContext
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { cc.Month, err = b.MonthSummary(gctx, ""); return })
	g.Go(func() (err error) { cc.Trend, err = b.Trend(gctx, chatTrendMonths); return })
	g.Go(func() (err error) { cc.Recent, err = b.Recent(gctx, chatRecentTxCount); return })
	g.Go(func() (err error) { cc.Loans, err = l.List(gctx, dbq.LoanFilter{OpenOnly: true}); return })
	if err := g.Wait(); err != nil {
		return ChatContext{}, fmt.Errorf("loading assistant context: %w", err)
	}
	cc.LoanTotal = ledger.Totals(cc.Loans)
	return cc, nil
}

const chatSystemPrompt = `Bạn là trợ lý tài chính của một gia đình Việt Nam.
Trả lời bằng tiếng Việt, ngắn gọn, thân thiện, dựa trên số liệu được cung cấp.
Số tiền viết theo kiểu Việt Nam, ví dụ 1.250.000đ. Không bịa số liệu không có trong dữ liệu.
Trả về JSON dạng {"answer": "..."}.`

// Describe renders the context as the data block of the prompt.
func (cc ChatContext) Describe() string {
	var b strings.Builder
	m := cc.Month
	fmt.Fprintf(&b, "## %s\nTổng thu: %s\nTổng chi: %s\nSố dư: %s\n", m.Label,
		models.FormatVND(m.Income), models.FormatVND(m.Expense), models.FormatVND(m.Balance))
	if len(m.ByCategory) > 0 {
		b.WriteString("Chi theo danh mục:\n")
		for _, c := range m.ByCategory {
			fmt.Fprintf(&b, "- %s: %s (%s%%)\n", c.Category, models.FormatVND(c.Amount), c.Share.String())
		}
	}

	if len(cc.Trend) > 0 {
		b.WriteString("\n## Xu hướng các tháng gần đây\n")
		for _, p := range cc.Trend {
			fmt.Fprintf(&b, "- %s: thu %s, chi %s\n", p.Label, models.FormatVND(p.Income), models.FormatVND(p.Expense))
		}
	}

	b.WriteString("\n## Khoản vay đang mở\n")
	if len(cc.Loans) == 0 {
		b.WriteString("Không có.\n")
	}
	for _, l := range cc.Loans {
		dir := "Cho vay"
		if l.Direction == models.Borrow {
			dir = "Đi vay"
		}
		fmt.Fprintf(&b, "- %s %s: còn %s", dir, l.Counterparty, models.FormatVND(l.RemainingAmount))
		if l.DueDate != "" {
			fmt.Fprintf(&b, ", hạn %s", l.DueDate)
		}
		if l.Overdue {
			b.WriteString(" (quá hạn)")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Tổng cho vay chưa thu: %s. Tổng nợ chưa trả: %s.\n",
		models.FormatVND(cc.LoanTotal.LentOutstanding), models.FormatVND(cc.LoanTotal.BorrowedOutstanding))

	if len(cc.Recent) > 0 {
		b.WriteString("\n## Giao dịch gần nhất\n")
		for _, t := range cc.Recent {
			sign := "-"
			if t.Type == models.Income {
				sign = "+"
			}
			fmt.Fprintf(&b, "- %s %s%s %s", t.Date, sign, models.FormatVND(t.Amount), t.Category)
			if t.Description != "" {
				fmt.Fprintf(&b, " (%s)", t.Description)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// LocalSummary is the one-paragraph answer used when the model is not
// available.
func (cc ChatContext) LocalSummary() string {
	m := cc.Month
	if m.TransactionCount == 0 {
		return fmt.Sprintf("%s chưa có giao dịch nào được ghi lại.", m.Label)
	}
	s := fmt.Sprintf("%s gia đình đã thu %s, chi %s, số dư %s.", m.Label,
		models.FormatVND(m.Income), models.FormatVND(m.Expense), models.FormatVND(m.Balance))
	if top, ok := m.TopCategory(); ok {
		s += fmt.Sprintf(" Chi nhiều nhất cho %s: %s (%s%%).", top.Category, models.FormatVND(top.Amount), top.Share.String())
	}
	return s
}

const chatApology = "Xin lỗi, trợ lý AI đang tạm thời không khả dụng. "

// TrimHistory keeps the last MaxHistoryTurns well-formed turns.
func TrimHistory(history []Turn) []Turn {
	clean := make([]Turn, 0, len(history))
	for _, t := range history {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		role := RoleUser
		if t.Role == RoleAssistant || t.Role == "model" {
			role = RoleAssistant
		}
		clean = append(clean, Turn{Role: role, Text: text})
	}
	if len(clean) > MaxHistoryTurns {
		clean = clean[len(clean)-MaxHistoryTurns:]
	}
	return clean
}

// SpendingChat answers a question about the household's money.
func (f *Flows) SpendingChat(ctx context.Context, question string, history []Turn, cc ChatContext) (ChatResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return ChatResult{}, &models.ValidationError{Field: "question", Message: "Vui lòng nhập câu hỏi"}
	}
	if len([]rune(question)) > MaxQuestionLen {
		return ChatResult{}, &models.ValidationError{Field: "question", Message: fmt.Sprintf("Câu hỏi tối đa %d ký tự", MaxQuestionLen)}
	}

	req := Request{
		System:  chatSystemPrompt + "\n\nDữ liệu hôm nay (" + f.today() + "):\n" + cc.Describe(),
		Prompt:  question,
		History: TrimHistory(history),
		JSON:    true,
	}
	parse := func(text string) (ChatResult, error) {
		var p struct {
			Answer string `json:"answer"`
		}
		if err := DecodeJSON(text, &p); err == nil && strings.TrimSpace(p.Answer) != "" {
			return ChatResult{Answer: strings.TrimSpace(p.Answer)}, nil
		}
		// Some answers come back as plain prose despite the JSON request.
		if strings.ContainsAny(text, "{}") {
			return ChatResult{}, ErrNoJSON
		}
		return ChatResult{Answer: strings.TrimSpace(text)}, nil
	}
	fallback := func() ChatResult {
		return ChatResult{Answer: chatApology + cc.LocalSummary()}
	}

	out, isFallback := run(ctx, f, FlowChat, req, parse, fallback)
	out.Fallback = isFallback
	return out, nil
}
