// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package dbq

import (
	"context"
	"database/sql"
	"strings"

	"familybudget/internal/models"

	"github.com/shopspring/decimal"
)

const transactionColumns = `t.id, t.type, t.amount, t.category, t.description, t.date, t.source, t.loan_id,
	t.created_by, COALESCE(u.display_name, ''), t.created_at, t.updated_at`

const transactionFrom = ` FROM transactions t LEFT JOIN users u ON u.id = t.created_by`

func scanTransaction(row scanner) (models.Transaction, error) {
	var (
		t                    models.Transaction
		loanID               sql.NullInt64
		createdAt, updatedAt string
	)
	err := row.Scan(&t.ID, &t.Type, &t.Amount, &t.Category, &t.Description, &t.Date, &t.Source, &loanID,
		&t.CreatedBy, &t.CreatedByName, &createdAt, &updatedAt)
	if err != nil {
		return models.Transaction{}, err
	}
	t.LoanID = intPtr(loanID)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

func collectTransactions(rows *sql.Rows) ([]models.Transaction, error) {
	defer rows.Close()
	var out []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type CreateTransactionParams struct {
	Type        models.TxType
	Amount      decimal.Decimal
	Category    string
	Description string
	Date        string
	Source      string
	LoanID      *int64
	CreatedBy   int64
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (int64, error) {
	now := q.timestamp()
	var id int64
	err := q.queryRow(ctx, `INSERT INTO transactions
		(type, amount, category, description, date, source, loan_id, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		string(arg.Type), arg.Amount, arg.Category, arg.Description, arg.Date, arg.Source, nullInt(arg.LoanID),
		arg.CreatedBy, now, now).Scan(&id)
	return id, err
}

func (q *Queries) GetTransaction(ctx context.Context, id int64) (models.Transaction, error) {
	t, err := scanTransaction(q.queryRow(ctx, `SELECT `+transactionColumns+transactionFrom+` WHERE t.id = ?`, id))
	return t, notFound(err)
}

type UpdateTransactionParams struct {
	ID          int64
	Type        models.TxType
	Amount      decimal.Decimal
	Category    string
	Description string
	Date        string
}

func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) error {
	return q.execAffected(ctx, `UPDATE transactions
		SET type = ?, amount = ?, category = ?, description = ?, date = ?, updated_at = ?
		WHERE id = ?`,
		string(arg.Type), arg.Amount, arg.Category, arg.Description, arg.Date, q.timestamp(), arg.ID)
}

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) error {
	return q.execAffected(ctx, `DELETE FROM transactions WHERE id = ?`, id)
}

func (q *Queries) DeleteLoanTransactions(ctx context.Context, loanID int64) error {
	_, err := q.exec(ctx, `DELETE FROM transactions WHERE loan_id = ? AND source = ?`, loanID, models.SourceLoan)
	return err
}

// TransactionFilter narrows ListTransactions. Zero values mean "any".
type TransactionFilter struct {
	From     string
	To       string
	Type     models.TxType
	Category string
	Search   string
	Limit    int32
	Offset   int32
}

func (f TransactionFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.From != "" {
		conds = append(conds, "t.date >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		conds = append(conds, "t.date < ?")
		args = append(args, f.To)
	}
	if f.Type != "" {
		conds = append(conds, "t.type = ?")
		args = append(args, string(f.Type))
	}
	if f.Category != "" {
		conds = append(conds, "t.category = ?")
		args = append(args, f.Category)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		conds = append(conds, "(LOWER(t.description) LIKE ? OR LOWER(t.category) LIKE ?)")
		pattern := "%" + strings.ToLower(s) + "%"
		args = append(args, pattern, pattern)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListTransactions returns the newest first. Limit 0 returns everything.
func (q *Queries) ListTransactions(ctx context.Context, f TransactionFilter) ([]models.Transaction, error) {
	where, args := f.where()
	query := `SELECT ` + transactionColumns + transactionFrom + where + ` ORDER BY t.date DESC, t.id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func (q *Queries) CountTransactions(ctx context.Context, f TransactionFilter) (int64, error) {
	where, args := f.where()
	var n int64
	err := q.queryRow(ctx, `SELECT COUNT(*)`+transactionFrom+where, args...).Scan(&n)
	return n, err
}
