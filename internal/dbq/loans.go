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

const loanColumns = `id, direction, counterparty, principal, paid_amount, remaining_amount, interest_rate,
	start_date, due_date, status, note, created_by, created_at, updated_at`

func scanLoan(row scanner) (models.Loan, error) {
	var (
		l                    models.Loan
		dueDate              sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&l.ID, &l.Direction, &l.Counterparty, &l.Principal, &l.PaidAmount, &l.RemainingAmount,
		&l.InterestRate, &l.StartDate, &dueDate, &l.Status, &l.Note, &l.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return models.Loan{}, err
	}
	l.DueDate = dueDate.String
	l.CreatedAt = parseTime(createdAt)
	l.UpdatedAt = parseTime(updatedAt)
	return l, nil
}

type CreateLoanParams struct {
	Direction    models.LoanDirection
	Counterparty string
	Principal    decimal.Decimal
	InterestRate decimal.Decimal
	StartDate    string
	DueDate      string
	Note         string
	CreatedBy    int64
}

func (q *Queries) CreateLoan(ctx context.Context, arg CreateLoanParams) (int64, error) {
	now := q.timestamp()
	var id int64
	err := q.queryRow(ctx, `INSERT INTO loans
		(direction, counterparty, principal, paid_amount, remaining_amount, interest_rate, start_date, due_date,
		 status, note, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		string(arg.Direction), arg.Principal, decimal.Zero, arg.Principal, arg.InterestRate, arg.StartDate,
		nullString(arg.DueDate), string(models.LoanActive), arg.Note, arg.CreatedBy, now, now).Scan(&id)
	return id, err
}

func (q *Queries) GetLoan(ctx context.Context, id int64) (models.Loan, error) {
	l, err := scanLoan(q.queryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id))
	return l, notFound(err)
}

type LoanFilter struct {
	Direction models.LoanDirection
	Status    models.LoanStatus
	OpenOnly  bool
}

// ListLoans returns open loans first, then by due date and newest.
func (q *Queries) ListLoans(ctx context.Context, f LoanFilter) ([]models.Loan, error) {
	var (
		conds []string
		args  []any
	)
	if f.Direction != "" {
		conds = append(conds, "direction = ?")
		args = append(args, string(f.Direction))
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.OpenOnly {
		conds = append(conds, "status <> ?")
		args = append(args, string(models.LoanPaid))
	}
	query := `SELECT ` + loanColumns + ` FROM loans`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY CASE WHEN status = 'paid' THEN 1 ELSE 0 END, COALESCE(due_date, '9999-12-31'), id DESC`

	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var loans []models.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

type UpdateLoanDetailsParams struct {
	ID           int64
	Counterparty string
	InterestRate decimal.Decimal
	StartDate    string
	DueDate      string
	Note         string
}

func (q *Queries) UpdateLoanDetails(ctx context.Context, arg UpdateLoanDetailsParams) error {
	return q.execAffected(ctx, `UPDATE loans
		SET counterparty = ?, interest_rate = ?, start_date = ?, due_date = ?, note = ?, updated_at = ?
		WHERE id = ?`,
		arg.Counterparty, arg.InterestRate, arg.StartDate, nullString(arg.DueDate), arg.Note, q.timestamp(), arg.ID)
}

type UpdateLoanLedgerParams struct {
	ID              int64
	Principal       decimal.Decimal
	PaidAmount      decimal.Decimal
	RemainingAmount decimal.Decimal
	Status          models.LoanStatus
}

func (q *Queries) UpdateLoanLedger(ctx context.Context, arg UpdateLoanLedgerParams) error {
	return q.execAffected(ctx, `UPDATE loans
		SET principal = ?, paid_amount = ?, remaining_amount = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		arg.Principal, arg.PaidAmount, arg.RemainingAmount, string(arg.Status), q.timestamp(), arg.ID)
}

func (q *Queries) DeleteLoan(ctx context.Context, id int64) error {
	return q.execAffected(ctx, `DELETE FROM loans WHERE id = ?`, id)
}

const paymentColumns = `id, loan_id, amount, date, note, transaction_id, created_by, created_at`

func scanPayment(row scanner) (models.LoanPayment, error) {
	var (
		p         models.LoanPayment
		txID      sql.NullInt64
		createdAt string
	)
	if err := row.Scan(&p.ID, &p.LoanID, &p.Amount, &p.Date, &p.Note, &txID, &p.CreatedBy, &createdAt); err != nil {
		return models.LoanPayment{}, err
	}
	p.TransactionID = intPtr(txID)
	p.CreatedAt = parseTime(createdAt)
	return p, nil
}

type CreateLoanPaymentParams struct {
	LoanID        int64
	Amount        decimal.Decimal
	Date          string
	Note          string
	TransactionID *int64
	CreatedBy     int64
}

func (q *Queries) CreateLoanPayment(ctx context.Context, arg CreateLoanPaymentParams) (models.LoanPayment, error) {
	row := q.queryRow(ctx, `INSERT INTO loan_payments (loan_id, amount, date, note, transaction_id, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING `+paymentColumns,
		arg.LoanID, arg.Amount, arg.Date, arg.Note, nullInt(arg.TransactionID), arg.CreatedBy, q.timestamp())
	return scanPayment(row)
}

func (q *Queries) GetLoanPayment(ctx context.Context, id int64) (models.LoanPayment, error) {
	p, err := scanPayment(q.queryRow(ctx, `SELECT `+paymentColumns+` FROM loan_payments WHERE id = ?`, id))
	return p, notFound(err)
}

func (q *Queries) ListLoanPayments(ctx context.Context, loanID int64) ([]models.LoanPayment, error) {
	rows, err := q.query(ctx, `SELECT `+paymentColumns+` FROM loan_payments WHERE loan_id = ? ORDER BY date DESC, id DESC`, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []models.LoanPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (q *Queries) DeleteLoanPayment(ctx context.Context, id int64) error {
	return q.execAffected(ctx, `DELETE FROM loan_payments WHERE id = ?`, id)
}
