// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package budget

import (
	"context"
	"fmt"
	"sort"

	"familybudget/internal/dbq"
	"familybudget/internal/models"

	"github.com/shopspring/decimal"
)

type CategoryTotal struct {
	Category string          `json:"category"`
	Icon     string          `json:"icon"`
	Amount   decimal.Decimal `json:"amount"`
	Share    decimal.Decimal `json:"share"`
	Count    int             `json:"count"`
}

type DailyTotal struct {
	Date    string          `json:"date"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

type MonthSummary struct {
	Month            string          `json:"month"`
	Label            string          `json:"label"`
	Income           decimal.Decimal `json:"income"`
	Expense          decimal.Decimal `json:"expense"`
	Balance          decimal.Decimal `json:"balance"`
	TransactionCount int             `json:"transaction_count"`
	ByCategory       []CategoryTotal `json:"by_category"`
	IncomeByCategory []CategoryTotal `json:"income_by_category"`
	Daily            []DailyTotal    `json:"daily"`
}

// TopCategory is the largest expense category of the month.
func (m MonthSummary) TopCategory() (CategoryTotal, bool) {
	if len(m.ByCategory) == 0 {
		return CategoryTotal{}, false
	}
	return m.ByCategory[0], true
}

type TrendPoint struct {
	Month   string          `json:"month"`
	Label   string          `json:"label"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

const MaxTrendMonths = 24

var hundred = decimal.NewFromInt(100)

func (s *Service) MonthSummary(ctx context.Context, month string) (MonthSummary, error) {
	if month == "" {
		month = models.CurrentMonth(s.Now())
	}
	from, to, err := models.MonthRange(month)
	if err != nil {
		return MonthSummary{}, err
	}
	txs, err := s.DB.Queries.ListTransactions(ctx, dbq.TransactionFilter{From: from, To: to})
	if err != nil {
		return MonthSummary{}, fmt.Errorf("loading month transactions: %w", err)
	}
	days, err := models.DaysInMonth(month)
	if err != nil {
		return MonthSummary{}, err
	}
	return Summarize(month, days, txs, s.Categories), nil
}

// Summarize aggregates one month of transactions. days lists every date of
// the month so Daily has an entry per day.
func Summarize(month string, days []string, txs []models.Transaction, cats *models.CategorySet) MonthSummary {
	sum := MonthSummary{
		Month:            month,
		Label:            models.MonthLabel(month),
		Income:           decimal.Zero,
		Expense:          decimal.Zero,
		TransactionCount: len(txs),
	}

	daily := make(map[string]*DailyTotal, len(days))
	for _, d := range days {
		daily[d] = &DailyTotal{Date: d, Income: decimal.Zero, Expense: decimal.Zero}
	}
	expenseBy := map[string]*CategoryTotal{}
	incomeBy := map[string]*CategoryTotal{}

	for _, t := range txs {
		bucket := expenseBy
		if t.Type == models.Income {
			sum.Income = sum.Income.Add(t.Amount)
			bucket = incomeBy
		} else {
			sum.Expense = sum.Expense.Add(t.Amount)
		}
		ct, ok := bucket[t.Category]
		if !ok {
			ct = &CategoryTotal{Category: t.Category, Amount: decimal.Zero}
			if cats != nil {
				ct.Icon = cats.Icon(t.Category)
			}
			bucket[t.Category] = ct
		}
		ct.Amount = ct.Amount.Add(t.Amount)
		ct.Count++

		if d, ok := daily[t.Date]; ok {
			if t.Type == models.Income {
				d.Income = d.Income.Add(t.Amount)
			} else {
				d.Expense = d.Expense.Add(t.Amount)
			}
		}
	}

	sum.Balance = sum.Income.Sub(sum.Expense)
	sum.ByCategory = rankCategories(expenseBy, sum.Expense)
	sum.IncomeByCategory = rankCategories(incomeBy, sum.Income)
	sum.Daily = make([]DailyTotal, 0, len(days))
	for _, d := range days {
		sum.Daily = append(sum.Daily, *daily[d])
	}
	return sum
}

// rankCategories sorts by amount descending, ties by name, and fills the
// percentage share of total rounded to one decimal.
func rankCategories(by map[string]*CategoryTotal, total decimal.Decimal) []CategoryTotal {
	out := make([]CategoryTotal, 0, len(by))
	for _, ct := range by {
		if total.IsPositive() {
			ct.Share = ct.Amount.Mul(hundred).Div(total).Round(1)
		} else {
			ct.Share = decimal.Zero
		}
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Amount.Equal(out[j].Amount) {
			return out[i].Amount.GreaterThan(out[j].Amount)
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Trend returns income and expense for the last n months, oldest first,
// ending with the current month.
func (s *Service) Trend(ctx context.Context, n int) ([]TrendPoint, error) {
	if n < 1 {
		n = 1
	}
	if n > MaxTrendMonths {
		n = MaxTrendMonths
	}
	current := models.CurrentMonth(s.Now())
	first, err := models.ShiftMonth(current, -(n - 1))
	if err != nil {
		return nil, err
	}
	from, _, err := models.MonthRange(first)
	if err != nil {
		return nil, err
	}
	_, to, err := models.MonthRange(current)
	if err != nil {
		return nil, err
	}
	txs, err := s.DB.Queries.ListTransactions(ctx, dbq.TransactionFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("loading trend transactions: %w", err)
	}

	points := make([]TrendPoint, n)
	index := make(map[string]int, n)
	for i := 0; i < n; i++ {
		m, _ := models.ShiftMonth(first, i)
		points[i] = TrendPoint{Month: m, Label: models.MonthLabel(m), Income: decimal.Zero, Expense: decimal.Zero}
		index[m] = i
	}
	for _, t := range txs {
		if len(t.Date) < 7 {
			continue
		}
		i, ok := index[t.Date[:7]]
		if !ok {
			continue
		}
		if t.Type == models.Income {
			points[i].Income = points[i].Income.Add(t.Amount)
		} else {
			points[i].Expense = points[i].Expense.Add(t.Amount)
		}
	}
	for i := range points {
		points[i].Balance = points[i].Income.Sub(points[i].Expense)
	}
	return points, nil
}
