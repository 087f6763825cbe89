// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package ai_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"familybudget/internal/ai"
	"familybudget/internal/budget"
	"familybudget/internal/models"
	"familybudget/internal/telemetry"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 19, 9, 0, 0, 0, models.Location)

// pngHeader is enough for http.DetectContentType to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

type fakeGenerator struct {
	mu       sync.Mutex
	response string
	err      error
	requests []ai.Request
}

func (g *fakeGenerator) Generate(_ context.Context, req ai.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	return g.response, g.err
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func newFlows(gen ai.Generator) (*ai.Flows, *telemetry.Registry) {
	reg := telemetry.NewRegistry()
	return ai.NewFlows(gen, reg, models.MustLoadCategories(), ai.WithClock(func() time.Time { return fixedNow })), reg
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"fenced", "Đây là kết quả:\n```json\n{\"a\": 1}\n```\nXong.", `{"a": 1}`},
		{"bare fence", "```\n[1, 2]\n```", `[1, 2]`},
		{"embedded object", `Kết quả {"a": {"b": "}"}} hết`, `{"a": {"b": "}"}}`},
		{"array first", `entries: [{"x": 1}] and {"y": 2}`, `[{"x": 1}]`},
		{"escaped quote", `{"s": "a \"{\" b"}`, `{"s": "a \"{\" b"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ai.ExtractJSON(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ai.ExtractJSON("không có json")
	assert.ErrorIs(t, err, ai.ErrNoJSON)
	_, err = ai.ExtractJSON(`{"a": [1, 2}`)
	assert.ErrorIs(t, err, ai.ErrNoJSON)
}

func TestAmountDecoding(t *testing.T) {
	var p struct {
		A models.Amount `json:"a"`
		B models.Amount `json:"b"`
		C models.Amount `json:"c"`
		D models.Amount `json:"d"`
	}
	require.NoError(t, ai.DecodeJSON(`{"a": "150.000đ", "b": "1,2 triệu", "c": 45000.4, "d": null}`, &p))
	assert.Equal(t, "150000", p.A.String())
	assert.Equal(t, "1200000", p.B.String())
	assert.Equal(t, "45000", p.C.String())
	assert.True(t, p.D.IsZero())
}

func TestValidateImage(t *testing.T) {
	mime, err := ai.ValidateImage(pngHeader, "")
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)

	mime, err = ai.ValidateImage([]byte("....ftypheic...."), "image/heic")
	require.NoError(t, err)
	assert.Equal(t, "image/heic", mime)

	mime, err = ai.ValidateImage([]byte("\x00\x00\x00\x18ftypmif1\x00\x00\x00\x00"), "image/heif")
	require.NoError(t, err)
	assert.Equal(t, "image/heif", mime)

	var verr *models.ValidationError
	_, err = ai.ValidateImage([]byte("%PDF-1.4"), "image/png")
	assert.ErrorAs(t, err, &verr)
	_, err = ai.ValidateImage([]byte("%PDF-1.4 not an image at all"), "image/heic")
	assert.ErrorAs(t, err, &verr, "HEIC must carry an ftyp box")
	_, err = ai.ValidateImage([]byte("\x00\x00\x00\x18ftypisom\x00\x00\x00\x00"), "image/heic")
	assert.ErrorAs(t, err, &verr, "MP4 brand is not an image")
	_, err = ai.ValidateImage(nil, "")
	assert.ErrorAs(t, err, &verr)
	_, err = ai.ValidateImage(make([]byte, ai.MaxImageBytes+1), "image/jpeg")
	assert.ErrorAs(t, err, &verr)
}

func TestExtractBill(t *testing.T) {
	gen := &fakeGenerator{response: "```json\n" + `{
		"amount": "235.000đ",
		"description": "Ăn trưa quán cơm",
		"category": "an uong",
		"date": "2026-10-18",
		"merchant": "Cơm Tấm Cali",
		"items": [{"name": "Cơm sườn", "amount": 65000}, {"name": "", "amount": 1}],
		"confidence": 92
	}` + "\n```"}
	flows, reg := newFlows(gen)

	res, err := flows.ExtractBill(context.Background(), pngHeader, "image/png")
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(235_000)))
	assert.Equal(t, "Ăn uống", res.Category)
	assert.Equal(t, "2026-10-18", res.Date)
	assert.Equal(t, "Cơm Tấm Cali", res.Merchant)
	require.Len(t, res.Items, 1)
	assert.InDelta(t, 0.92, res.Confidence, 1e-9)

	require.Len(t, gen.requests, 1)
	req := gen.requests[0]
	assert.True(t, req.JSON)
	require.Len(t, req.Images, 1)
	assert.Equal(t, "image/png", req.Images[0].MIME)
	assert.Contains(t, req.Prompt, "Ăn uống")
	assert.Equal(t, int64(1), reg.Stats(ai.FlowBill).SuccessCount)
}

func TestExtractBill_SumsItemsWhenTotalMissing(t *testing.T) {
	gen := &fakeGenerator{response: `{"items": [{"name": "Sữa", "price": "32k"}, {"name": "Bánh mì", "amount": 15000}], "category": "không rõ", "description": "đi chợ", "date": "hôm qua"}`}
	flows, _ := newFlows(gen)

	res, err := flows.ExtractBill(context.Background(), pngHeader, "")
	require.NoError(t, err)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(47_000)))
	assert.Equal(t, "Ăn uống", res.Category, "keyword fallback on description")
	assert.Equal(t, "2026-10-19", res.Date)
}

func TestExtractBill_Fallbacks(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		flows, reg := newFlows(nil)
		res, err := flows.ExtractBill(context.Background(), pngHeader, "")
		require.NoError(t, err)
		assert.True(t, res.Fallback)
		assert.True(t, res.Amount.IsZero())
		assert.Equal(t, "Khác", res.Category)
		assert.Equal(t, "2026-10-19", res.Date)
		assert.Equal(t, int64(1), reg.Stats(ai.FlowBill).FallbackCount)
	})
	t.Run("model error", func(t *testing.T) {
		flows, reg := newFlows(&fakeGenerator{err: errors.New("quota exceeded")})
		res, err := flows.ExtractBill(context.Background(), pngHeader, "")
		require.NoError(t, err)
		assert.True(t, res.Fallback)
		assert.Equal(t, "quota exceeded", reg.Stats(ai.FlowBill).LastError)
	})
	t.Run("garbage", func(t *testing.T) {
		flows, _ := newFlows(&fakeGenerator{response: "Tôi không đọc được ảnh này."})
		res, err := flows.ExtractBill(context.Background(), pngHeader, "")
		require.NoError(t, err)
		assert.True(t, res.Fallback)
	})
	t.Run("separator-only amount", func(t *testing.T) {
		flows, reg := newFlows(&fakeGenerator{response: `{"amount": ".", "description": "x"}`})
		res, err := flows.ExtractBill(context.Background(), pngHeader, "image/png")
		require.NoError(t, err)
		assert.True(t, res.Fallback)
		assert.True(t, res.Amount.IsZero())
		assert.Equal(t, int64(1), reg.Stats(ai.FlowBill).FailureCount)
	})
	t.Run("invalid input is not a fallback", func(t *testing.T) {
		gen := &fakeGenerator{}
		flows, _ := newFlows(gen)
		_, err := flows.ExtractBill(context.Background(), []byte("not an image"), "text/plain")
		var verr *models.ValidationError
		assert.ErrorAs(t, err, &verr)
		assert.Zero(t, gen.calls())
	})
}

func TestCooldownSkipsModel(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("503")}
	flows, reg := newFlows(gen)
	for i := 0; i < 3; i++ {
		_, err := flows.ExtractBill(context.Background(), pngHeader, "")
		require.NoError(t, err)
	}
	require.True(t, reg.InCooldown(ai.FlowBill))

	res, err := flows.ExtractBill(context.Background(), pngHeader, "")
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, 3, gen.calls(), "cooling flow must not call the model")
}

func TestSuggestCategory(t *testing.T) {
	gen := &fakeGenerator{response: `{"category": "Đi lại", "confidence": 0.9}`}
	flows, _ := newFlows(gen)
	ctx := context.Background()

	res, err := flows.SuggestCategory(ctx, "Đổ xăng xe máy", models.Expense)
	require.NoError(t, err)
	assert.Equal(t, ai.CategorySuggestion{Category: "Đi lại", Confidence: 0.9, Source: ai.SourceModel}, res)

	res, err = flows.SuggestCategory(ctx, "đổ xăng  XE MÁY", models.Expense)
	require.NoError(t, err)
	assert.Equal(t, ai.SourceCache, res.Source)
	assert.Equal(t, 1, gen.calls())

	_, err = flows.SuggestCategory(ctx, "  ", models.Expense)
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
	_, err = flows.SuggestCategory(ctx, "lương", "salary")
	assert.ErrorAs(t, err, &verr)
}

func TestSuggestCategory_UnknownCategoryFallsBackToKeywords(t *testing.T) {
	gen := &fakeGenerator{response: `{"category": "Xăng dầu", "confidence": 0.8}`}
	flows, _ := newFlows(gen)

	res, err := flows.SuggestCategory(context.Background(), "tiền điện tháng 10", models.Expense)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, ai.SourceKeywords, res.Source)
	assert.Equal(t, "Hóa đơn", res.Category)

	res, err = flows.SuggestCategory(context.Background(), "xyz không rõ", models.Expense)
	require.NoError(t, err)
	assert.Equal(t, "Khác", res.Category)
	assert.Zero(t, res.Confidence)
	assert.Zero(t, flows.CategoryCache().Len(), "fallbacks are not cached")
}

func chatContext() ai.ChatContext {
	days, _ := models.DaysInMonth("2026-10")
	month := budget.Summarize("2026-10", days, []models.Transaction{
		{Type: models.Income, Amount: decimal.NewFromInt(20_000_000), Category: "Lương", Date: "2026-10-05"},
		{Type: models.Expense, Amount: decimal.NewFromInt(3_000_000), Category: "Ăn uống", Date: "2026-10-06"},
		{Type: models.Expense, Amount: decimal.NewFromInt(1_000_000), Category: "Đi lại", Date: "2026-10-07"},
	}, nil)
	return ai.ChatContext{
		Month: month,
		Loans: []models.Loan{{Direction: models.Lend, Counterparty: "Chú Ba", RemainingAmount: decimal.NewFromInt(2_000_000), DueDate: "2026-10-01", Overdue: true}},
		LoanTotal: models.LoanTotals{
			LentOutstanding: decimal.NewFromInt(2_000_000), BorrowedOutstanding: decimal.Zero, OpenLoans: 1,
		},
	}
}

func TestSpendingChat(t *testing.T) {
	gen := &fakeGenerator{response: `{"answer": "Tháng này bạn chi nhiều nhất cho Ăn uống."}`}
	flows, _ := newFlows(gen)

	history := make([]ai.Turn, 0, 14)
	for i := 0; i < 14; i++ {
		role := ai.RoleUser
		if i%2 == 1 {
			role = ai.RoleAssistant
		}
		history = append(history, ai.Turn{Role: role, Text: "lượt " + string(rune('a'+i))})
	}

	res, err := flows.SpendingChat(context.Background(), "Tháng này chi gì nhiều nhất?", history, chatContext())
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.Equal(t, "Tháng này bạn chi nhiều nhất cho Ăn uống.", res.Answer)

	req := gen.requests[0]
	assert.Len(t, req.History, ai.MaxHistoryTurns)
	assert.Equal(t, "lượt e", req.History[0].Text)
	assert.Contains(t, req.System, "Tổng chi: 4.000.000đ")
	assert.Contains(t, req.System, "Cho vay Chú Ba: còn 2.000.000đ, hạn 2026-10-01 (quá hạn)")
}

func TestSpendingChat_PlainTextAnswer(t *testing.T) {
	flows, _ := newFlows(&fakeGenerator{response: "Bạn nên giảm chi ăn uống."})
	res, err := flows.SpendingChat(context.Background(), "Lời khuyên?", nil, chatContext())
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.Equal(t, "Bạn nên giảm chi ăn uống.", res.Answer)
}

func TestSpendingChat_Fallback(t *testing.T) {
	flows, _ := newFlows(nil)
	res, err := flows.SpendingChat(context.Background(), "Tháng này thế nào?", nil, chatContext())
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.True(t, strings.HasPrefix(res.Answer, "Xin lỗi"))
	assert.Contains(t, res.Answer, "số dư 16.000.000đ")
	assert.Contains(t, res.Answer, "Ăn uống: 3.000.000đ (75%)")

	_, err = flows.SpendingChat(context.Background(), "", nil, chatContext())
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestTrimHistory(t *testing.T) {
	got := ai.TrimHistory([]ai.Turn{{Role: "model", Text: " chào "}, {Role: "system", Text: "x"}, {Role: ai.RoleUser, Text: "  "}})
	assert.Equal(t, []ai.Turn{{Role: ai.RoleAssistant, Text: "chào"}, {Role: ai.RoleUser, Text: "x"}}, got)
}

func TestMapShiftLabel(t *testing.T) {
	cases := map[string]models.ShiftKind{
		"Ca sáng":       models.ShiftMorning,
		"CHIỀU":         models.ShiftAfternoon,
		"Ca đêm":        models.ShiftNight,
		"tối":           models.ShiftNight,
		"Hành chính":    models.ShiftOffice,
		"HC":            models.ShiftOffice,
		"Nghỉ phép":     models.ShiftOff,
		"OFF":           models.ShiftOff,
		"night":         models.ShiftNight,
		"Trực cấp cứu":  models.ShiftCustom,
		"":              models.ShiftCustom,
	}
	for label, want := range cases {
		assert.Equal(t, want, ai.MapShiftLabel(label), label)
	}
}

func TestNormalizeScheduleDate(t *testing.T) {
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"2026-10-07", "2026-10-07", true},
		{"2025-09-07", "2026-10-07", true},
		{"7/10", "2026-10-07", true},
		{"07-10-2026", "2026-10-07", true},
		{"Ngày 31", "2026-10-31", true},
		{"12", "2026-10-12", true},
		{"32", "", false},
		{"thứ hai", "", false},
	}
	for _, c := range cases {
		got, ok := ai.NormalizeScheduleDate(c.raw, "2026-10")
		assert.Equal(t, c.ok, ok, c.raw)
		assert.Equal(t, c.want, got, c.raw)
	}
	_, ok := ai.NormalizeScheduleDate("31", "2026-11")
	assert.False(t, ok)
}

func TestNormalizeClock(t *testing.T) {
	for raw, want := range map[string]string{"7h": "07:00", "7h30": "07:30", "19:45": "19:45", "22.00": "22:00", "25:00": "", "sáng": ""} {
		assert.Equal(t, want, ai.NormalizeClock(raw), raw)
	}
}

func TestParseWorkSchedule(t *testing.T) {
	gen := &fakeGenerator{response: `[
		{"person": "", "date": 5, "shift": "Ca sáng", "start_time": "6h", "end_time": "14h"},
		{"person": "", "date": "2026-10-06", "shift": "Trực", "note": ""},
		{"person": "", "date": "5/10", "shift": "Ca đêm"},
		{"person": "Lan", "date": "40", "shift": "Nghỉ"}
	]`}
	flows, _ := newFlows(gen)

	res, err := flows.ParseWorkSchedule(context.Background(), pngHeader, "image/png", "2026-10", "Mẹ")
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	require.Len(t, res.Entries, 2)

	first := res.Entries[0]
	assert.Equal(t, "Mẹ", first.Person)
	assert.Equal(t, "2026-10-05", first.Date)
	assert.Equal(t, models.ShiftNight, first.Shift, "later entry for the same day wins")

	second := res.Entries[1]
	assert.Equal(t, models.ShiftCustom, second.Shift)
	assert.Equal(t, "Trực", second.Note)
	assert.Contains(t, gen.requests[0].Prompt, "Tháng 10/2026")
}

func TestParseWorkSchedule_Validation(t *testing.T) {
	flows, _ := newFlows(nil)
	_, err := flows.ParseWorkSchedule(context.Background(), pngHeader, "", "10-2026", "")
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)

	res, err := flows.ParseWorkSchedule(context.Background(), pngHeader, "", "", "")
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, "2026-10", res.Month)
	assert.Empty(t, res.Entries)
}
