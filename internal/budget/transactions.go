// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.

// Package budget holds the transaction, summary and calendar operations that
// sit between the handlers and the query layer.
package budget

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"familybudget/internal/db"
	"familybudget/internal/dbq"
	"familybudget/internal/ledger"
	"familybudget/internal/models"
)

type Service struct {
	DB         *db.Database
	Categories *models.CategorySet
	Now        func() time.Time
}

func NewService(database *db.Database, cats *models.CategorySet) *Service {
	return &Service{DB: database, Categories: cats, Now: time.Now}
}

func (s *Service) today() string {
	return models.Today(s.Now())
}

// ListParams mirrors the transaction list filters accepted over HTTP.
type ListParams struct {
	Month    string
	Type     models.TxType
	Category string
	Search   string
	Page     int
	PerPage  int
}

type TransactionPage struct {
	Items      []models.Transaction `json:"items"`
	Total      int64                `json:"total"`
	Page       int                  `json:"page"`
	PerPage    int                  `json:"per_page"`
	TotalPages int                  `json:"total_pages"`
}

const (
	DefaultPerPage = 50
	MaxPerPage     = 200
)

func (p ListParams) filter() (dbq.TransactionFilter, error) {
	f := dbq.TransactionFilter{Type: p.Type, Category: p.Category, Search: p.Search}
	if p.Type != "" && !p.Type.Valid() {
		return f, &models.ValidationError{Field: "type", Message: "Loại giao dịch phải là thu hoặc chi"}
	}
	if p.Month != "" {
		from, to, err := models.MonthRange(p.Month)
		if err != nil {
			return f, err
		}
		f.From, f.To = from, to
	}
	return f, nil
}

func (s *Service) List(ctx context.Context, p ListParams) (TransactionPage, error) {
	f, err := p.filter()
	if err != nil {
		return TransactionPage{}, err
	}
	if p.PerPage <= 0 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	if p.Page < 1 {
		p.Page = 1
	}

	total, err := s.DB.Queries.CountTransactions(ctx, f)
	if err != nil {
		return TransactionPage{}, fmt.Errorf("counting transactions: %w", err)
	}
	totalPages := int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	if totalPages < 1 {
		totalPages = 1
	}
	// Pages past the end show the last page.
	if p.Page > totalPages {
		p.Page = totalPages
	}

	f.Limit = int32(p.PerPage)
	f.Offset = int32((p.Page - 1) * p.PerPage)
	items, err := s.DB.Queries.ListTransactions(ctx, f)
	if err != nil {
		return TransactionPage{}, fmt.Errorf("listing transactions: %w", err)
	}

	return TransactionPage{Items: items, Total: total, Page: p.Page, PerPage: p.PerPage, TotalPages: totalPages}, nil
}

// Recent returns the newest n transactions across all months.
func (s *Service) Recent(ctx context.Context, n int) ([]models.Transaction, error) {
	return s.DB.Queries.ListTransactions(ctx, dbq.TransactionFilter{Limit: int32(n)})
}

func (s *Service) Get(ctx context.Context, id int64) (models.Transaction, error) {
	return s.DB.Queries.GetTransaction(ctx, id)
}

// Create validates t and stores it. Only the loan ledger may write
// source=loan rows.
func (s *Service) Create(ctx context.Context, t models.Transaction, userID int64) (models.Transaction, error) {
	if t.Date == "" {
		t.Date = s.today()
	}
	t.Normalize(s.Categories)
	if t.Source == models.SourceLoan {
		return models.Transaction{}, ledger.ErrLoanManaged
	}
	if err := t.Validate(); err != nil {
		return models.Transaction{}, err
	}
	id, err := s.DB.Queries.CreateTransaction(ctx, dbq.CreateTransactionParams{
		Type:        t.Type,
		Amount:      t.Amount,
		Category:    t.Category,
		Description: t.Description,
		Date:        t.Date,
		Source:      t.Source,
		CreatedBy:   userID,
	})
	if err != nil {
		return models.Transaction{}, fmt.Errorf("creating transaction: %w", err)
	}
	slog.Info("Transaction created", "id", id, "type", t.Type, "category", t.Category, "source", t.Source)
	return s.DB.Queries.GetTransaction(ctx, id)
}

func (s *Service) Update(ctx context.Context, id int64, changes models.Transaction) (models.Transaction, error) {
	current, err := s.DB.Queries.GetTransaction(ctx, id)
	if err != nil {
		return models.Transaction{}, err
	}
	if current.LoanManaged() {
		return models.Transaction{}, ledger.ErrLoanManaged
	}
	changes.Source = current.Source
	if changes.Date == "" {
		changes.Date = current.Date
	}
	changes.Normalize(s.Categories)
	if err := changes.Validate(); err != nil {
		return models.Transaction{}, err
	}
	if err := s.DB.Queries.UpdateTransaction(ctx, dbq.UpdateTransactionParams{
		ID:          id,
		Type:        changes.Type,
		Amount:      changes.Amount,
		Category:    changes.Category,
		Description: changes.Description,
		Date:        changes.Date,
	}); err != nil {
		return models.Transaction{}, err
	}
	return s.DB.Queries.GetTransaction(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	current, err := s.DB.Queries.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if current.LoanManaged() {
		return ledger.ErrLoanManaged
	}
	return s.DB.Queries.DeleteTransaction(ctx, id)
}

// Export streams every transaction in the month (all months when empty) to
// fn, oldest first.
func (s *Service) Export(ctx context.Context, month string, fn func(models.Transaction) error) (int, error) {
	f, err := ListParams{Month: month}.filter()
	if err != nil {
		return 0, err
	}
	items, err := s.DB.Queries.ListTransactions(ctx, f)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := len(items) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := fn(items[i]); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
