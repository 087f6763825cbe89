// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package templates

import (
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"time"

	"familybudget/internal/middleware"
	"familybudget/internal/models"

	"github.com/shopspring/decimal"
)

func FuncMap(cats *models.CategorySet) template.FuncMap {
	m := template.FuncMap{}
	mergeFuncs(m, dateTimeFuncs())
	mergeFuncs(m, moneyFuncs())
	mergeFuncs(m, numberFuncs())
	mergeFuncs(m, stringFuncs())
	mergeFuncs(m, safeFuncs())
	mergeFuncs(m, mapFuncs())
	mergeFuncs(m, labelFuncs(cats))
	mergeFuncs(m, displayFuncs())
	return m
}

func mergeFuncs(dst, src template.FuncMap) {
	for k, v := range src {
		dst[k] = v
	}
}

// formatDate renders YYYY-MM-DD strings and timestamps the Vietnamese way.
func formatDate(v any) string {
	switch d := v.(type) {
	case time.Time:
		if d.IsZero() {
			return ""
		}
		return d.In(models.Location).Format("02/01/2006")
	case string:
		t, err := time.Parse(models.DateLayout, d)
		if err != nil {
			return d
		}
		return t.Format("02/01/2006")
	default:
		return fmt.Sprintf("%v", v)
	}
}

func dateTimeFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDate": formatDate,
		"formatDateTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.In(models.Location).Format("15:04 02/01/2006")
		},
		"weekday":    models.WeekdayName,
		"monthLabel": models.MonthLabel,
		"dayOfMonth": func(date string) string {
			if len(date) != len(models.DateLayout) {
				return date
			}
			return strings.TrimPrefix(date[8:], "0")
		},
	}
}

func toDecimal(v any) decimal.Decimal {
	switch n := v.(type) {
	case decimal.Decimal:
		return n
	case *decimal.Decimal:
		if n == nil {
			return decimal.Zero
		}
		return *n
	case int:
		return decimal.NewFromInt(int64(n))
	case int64:
		return decimal.NewFromInt(n)
	case float64:
		return decimal.NewFromFloat(n)
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

func moneyFuncs() template.FuncMap {
	return template.FuncMap{
		"vnd": func(v any) string {
			return models.FormatVND(toDecimal(v))
		},
		// signedVND prefixes income with + and expense with -.
		"signedVND": func(t models.TxType, v any) string {
			d := toDecimal(v).Abs()
			if t == models.Income {
				return "+" + models.FormatVND(d)
			}
			return "-" + models.FormatVND(d)
		},
		// amountInput is the plain integer shown in number inputs.
		"amountInput": func(v any) string {
			d := toDecimal(v)
			if d.IsZero() {
				return ""
			}
			return d.Round(0).String()
		},
		"isNegative": func(v any) bool {
			return toDecimal(v).IsNegative()
		},
		"isPositive": func(v any) bool {
			return toDecimal(v).IsPositive()
		},
		// progress is paid/total as a whole percentage for progress bars.
		"progress": func(part, total any) int {
			t := toDecimal(total)
			if !t.IsPositive() {
				return 0
			}
			p := toDecimal(part).Mul(decimal.NewFromInt(100)).Div(t).Round(0).IntPart()
			if p < 0 {
				return 0
			}
			if p > 100 {
				return 100
			}
			return int(p)
		},
	}
}

func numberFuncs() template.FuncMap {
	return template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"sub": func(a, b int) int {
			return a - b
		},
		"seq": func(start, end int) []int {
			var result []int
			for i := start; i <= end; i++ {
				result = append(result, i)
			}
			return result
		},
	}
}

func stringFuncs() template.FuncMap {
	return template.FuncMap{
		"upper":     strings.ToUpper,
		"lower":     strings.ToLower,
		"contains":  strings.Contains,
		"hasPrefix": strings.HasPrefix,
		"join":      strings.Join,
		"trimSpace": strings.TrimSpace,
		"truncate": func(length int, s string) string {
			r := []rune(s)
			if len(r) <= length {
				return s
			}
			return string(r[:length]) + "…"
		},
		"initial": func(s string) string {
			r := []rune(strings.TrimSpace(s))
			if len(r) == 0 {
				return "?"
			}
			return strings.ToUpper(string(r[0]))
		},
	}
}

func safeFuncs() template.FuncMap {
	return template.FuncMap{
		"csrfField": func(token any) template.HTML {
			s, _ := token.(string)
			return middleware.CSRFHiddenInput(s)
		},
		"toJSON": func(v any) template.JS {
			b, err := json.Marshal(v)
			if err != nil {
				return template.JS("null")
			}
			return template.JS(b)
		},
	}
}

func mapFuncs() template.FuncMap {
	return template.FuncMap{
		"dict": func(values ...any) map[string]any {
			if len(values)%2 != 0 {
				return nil
			}
			d := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					continue
				}
				d[key] = values[i+1]
			}
			return d
		},
	}
}

var (
	txTypeLabels = map[models.TxType]string{
		models.Income:  "Thu",
		models.Expense: "Chi",
	}
	directionLabels = map[models.LoanDirection]string{
		models.Lend:   "Cho vay",
		models.Borrow: "Đi vay",
	}
	loanStatusLabels = map[models.LoanStatus]string{
		models.LoanActive:  "Chưa trả",
		models.LoanPartial: "Trả một phần",
		models.LoanPaid:    "Đã trả xong",
	}
	shiftLabels = map[models.ShiftKind]string{
		models.ShiftMorning:   "Ca sáng",
		models.ShiftAfternoon: "Ca chiều",
		models.ShiftNight:     "Ca đêm",
		models.ShiftOffice:    "Hành chính",
		models.ShiftOff:       "Nghỉ",
		models.ShiftCustom:    "Khác",
	}
	eventKindLabels = map[models.EventKind]string{
		models.KindEvent:    "Sự kiện",
		models.KindReminder: "Nhắc việc",
		models.KindBirthday: "Sinh nhật",
		models.KindBill:     "Hóa đơn",
	}
	sourceLabels = map[string]string{
		models.SourceManual: "Nhập tay",
		models.SourceBill:   "Ảnh hóa đơn",
		models.SourceLoan:   "Khoản vay",
	}
)

func labelFuncs(cats *models.CategorySet) template.FuncMap {
	return template.FuncMap{
		"txTypeLabel":    func(t models.TxType) string { return txTypeLabels[t] },
		"directionLabel": func(d models.LoanDirection) string { return directionLabels[d] },
		"loanStatusLabel": func(s models.LoanStatus) string {
			return loanStatusLabels[s]
		},
		"shiftLabel": func(s models.ShiftKind) string {
			if l, ok := shiftLabels[s]; ok {
				return l
			}
			return string(s)
		},
		"eventKindLabel": func(k models.EventKind) string { return eventKindLabels[k] },
		"sourceLabel":    func(s string) string { return sourceLabels[s] },
		"categoryIcon": func(name string) string {
			if cats == nil {
				return ""
			}
			return cats.Icon(name)
		},
		"categories": func(t any) []models.Category {
			if cats == nil {
				return nil
			}
			return cats.For(models.TxType(fmt.Sprint(t)))
		},
		"shiftKinds": func() []models.ShiftKind {
			return []models.ShiftKind{models.ShiftMorning, models.ShiftAfternoon, models.ShiftNight,
				models.ShiftOffice, models.ShiftOff, models.ShiftCustom}
		},
		"eventKinds": func() []models.EventKind {
			return []models.EventKind{models.KindEvent, models.KindReminder, models.KindBirthday, models.KindBill}
		},
	}
}

func displayFuncs() template.FuncMap {
	return template.FuncMap{
		"loanStatusClass": func(s models.LoanStatus, overdue bool) string {
			switch {
			case overdue:
				return "badge-danger"
			case s == models.LoanPaid:
				return "badge-success"
			case s == models.LoanPartial:
				return "badge-warning"
			default:
				return "badge-info"
			}
		},
		"txTypeClass": func(t models.TxType) string {
			if t == models.Income {
				return "income"
			}
			return "expense"
		},
		"shiftClass": func(s models.ShiftKind) string {
			return "shift-" + string(s)
		},
		"flashClass": func(category string) string {
			switch category {
			case "success":
				return "alert-success"
			case "warning":
				return "alert-warning"
			case "danger", "error":
				return "alert-danger"
			default:
				return "alert-info"
			}
		},
		"staticVersionURL": func(path, version string) string {
			return "/static/" + path + "?v=" + version
		},
	}
}
