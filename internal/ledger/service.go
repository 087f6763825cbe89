// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"familybudget/internal/db"
	"familybudget/internal/dbq"
	"familybudget/internal/models"

	"github.com/shopspring/decimal"
)

type Service struct {
	DB  *db.Database
	Now func() time.Time
}

func NewService(database *db.Database) *Service {
	return &Service{DB: database, Now: time.Now}
}

func (s *Service) today() string {
	return models.Today(s.Now())
}

type PaymentInput struct {
	LoanID            int64
	Amount            decimal.Decimal
	Date              string
	Note              string
	RecordTransaction bool
	UserID            int64
}

func (s *Service) CreateLoan(ctx context.Context, l models.Loan, userID int64) (models.Loan, error) {
	l.Normalize()
	if l.StartDate == "" {
		l.StartDate = s.today()
	}
	if err := l.Validate(); err != nil {
		return models.Loan{}, err
	}
	id, err := s.DB.Queries.CreateLoan(ctx, dbq.CreateLoanParams{
		Direction:    l.Direction,
		Counterparty: l.Counterparty,
		Principal:    l.Principal,
		InterestRate: l.InterestRate,
		StartDate:    l.StartDate,
		DueDate:      l.DueDate,
		Note:         l.Note,
		CreatedBy:    userID,
	})
	if err != nil {
		return models.Loan{}, fmt.Errorf("creating loan: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (models.Loan, error) {
	l, err := s.DB.Queries.GetLoan(ctx, id)
	if err != nil {
		return models.Loan{}, err
	}
	l.MarkOverdue(s.today())
	return l, nil
}

func (s *Service) List(ctx context.Context, f dbq.LoanFilter) ([]models.Loan, error) {
	loans, err := s.DB.Queries.ListLoans(ctx, f)
	if err != nil {
		return nil, err
	}
	today := s.today()
	for i := range loans {
		loans[i].MarkOverdue(today)
	}
	return loans, nil
}

// UpdateLoan edits descriptive fields and, when it changes, the principal.
// The direction of a loan is fixed once created.
func (s *Service) UpdateLoan(ctx context.Context, id int64, changes models.Loan) (models.Loan, error) {
	err := s.DB.WithTx(ctx, func(q *dbq.Queries) error {
		current, err := q.GetLoan(ctx, id)
		if err != nil {
			return err
		}
		changes.Direction = current.Direction
		changes.Normalize()
		if changes.Principal.IsZero() {
			changes.Principal = current.Principal
		}
		if changes.StartDate == "" {
			changes.StartDate = current.StartDate
		}
		if err := changes.Validate(); err != nil {
			return err
		}

		if err := q.UpdateLoanDetails(ctx, dbq.UpdateLoanDetailsParams{
			ID:           id,
			Counterparty: changes.Counterparty,
			InterestRate: changes.InterestRate,
			StartDate:    changes.StartDate,
			DueDate:      changes.DueDate,
			Note:         changes.Note,
		}); err != nil {
			return err
		}

		if changes.Principal.Equal(current.Principal) {
			return nil
		}
		next, err := ChangePrincipal(current, changes.Principal)
		if err != nil {
			return err
		}
		return q.UpdateLoanLedger(ctx, ledgerParams(next))
	})
	if err != nil {
		return models.Loan{}, err
	}
	return s.Get(ctx, id)
}

// DeleteLoan removes the loan, its payments and the transactions they
// generated.
func (s *Service) DeleteLoan(ctx context.Context, id int64) error {
	return s.DB.WithTx(ctx, func(q *dbq.Queries) error {
		if _, err := q.GetLoan(ctx, id); err != nil {
			return err
		}
		if err := q.DeleteLoanTransactions(ctx, id); err != nil {
			return fmt.Errorf("deleting loan transactions: %w", err)
		}
		return q.DeleteLoan(ctx, id)
	})
}

// RecordPayment applies a payment to the loan ledger, stores the payment and,
// when asked, the matching income/expense transaction, all in one database
// transaction.
func (s *Service) RecordPayment(ctx context.Context, in PaymentInput) (models.LoanPayment, models.Loan, error) {
	in.Note = strings.TrimSpace(in.Note)
	if in.Date == "" {
		in.Date = s.today()
	}
	if !models.ValidDate(in.Date) {
		return models.LoanPayment{}, models.Loan{}, &models.ValidationError{Field: "date", Message: "Ngày trả không hợp lệ"}
	}
	if len([]rune(in.Note)) > models.MaxDescriptionLen {
		return models.LoanPayment{}, models.Loan{}, &models.ValidationError{Field: "note", Message: "Ghi chú quá dài"}
	}

	var (
		payment models.LoanPayment
		updated models.Loan
	)
	err := s.DB.WithTx(ctx, func(q *dbq.Queries) error {
		loan, err := q.GetLoan(ctx, in.LoanID)
		if err != nil {
			return err
		}
		next, err := ApplyPayment(loan, in.Amount)
		if err != nil {
			return err
		}
		if err := q.UpdateLoanLedger(ctx, ledgerParams(next)); err != nil {
			return fmt.Errorf("updating loan ledger: %w", err)
		}

		var txID *int64
		if in.RecordTransaction {
			txType, category, description := AuxTransaction(loan)
			if in.Note != "" {
				description += ": " + in.Note
			}
			loanID := loan.ID
			id, err := q.CreateTransaction(ctx, dbq.CreateTransactionParams{
				Type:        txType,
				Amount:      in.Amount,
				Category:    category,
				Description: description,
				Date:        in.Date,
				Source:      models.SourceLoan,
				LoanID:      &loanID,
				CreatedBy:   in.UserID,
			})
			if err != nil {
				return fmt.Errorf("recording loan transaction: %w", err)
			}
			txID = &id
		}

		payment, err = q.CreateLoanPayment(ctx, dbq.CreateLoanPaymentParams{
			LoanID:        loan.ID,
			Amount:        in.Amount,
			Date:          in.Date,
			Note:          in.Note,
			TransactionID: txID,
			CreatedBy:     in.UserID,
		})
		if err != nil {
			return fmt.Errorf("recording loan payment: %w", err)
		}
		updated = next
		return nil
	})
	if err != nil {
		return models.LoanPayment{}, models.Loan{}, err
	}

	updated.MarkOverdue(s.today())
	slog.Info("Loan payment recorded",
		"loan_id", in.LoanID,
		"payment_id", payment.ID,
		"amount", in.Amount.String(),
		"remaining", updated.RemainingAmount.String(),
		"status", updated.Status,
	)
	return payment, updated, nil
}

// DeletePayment undoes a payment: the ledger is restored and the generated
// transaction, if any, is removed.
func (s *Service) DeletePayment(ctx context.Context, loanID, paymentID int64) (models.Loan, error) {
	var updated models.Loan
	err := s.DB.WithTx(ctx, func(q *dbq.Queries) error {
		payment, err := q.GetLoanPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.LoanID != loanID {
			return ErrPaymentMismatch
		}
		loan, err := q.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}
		next, err := ReversePayment(loan, payment.Amount)
		if err != nil {
			return err
		}
		if err := q.UpdateLoanLedger(ctx, ledgerParams(next)); err != nil {
			return err
		}
		if err := q.DeleteLoanPayment(ctx, paymentID); err != nil {
			return err
		}
		if payment.TransactionID != nil {
			if err := q.DeleteTransaction(ctx, *payment.TransactionID); err != nil && !errors.Is(err, dbq.ErrNotFound) {
				return err
			}
		}
		updated = next
		return nil
	})
	if err != nil {
		return models.Loan{}, err
	}
	updated.MarkOverdue(s.today())
	return updated, nil
}

func (s *Service) Payments(ctx context.Context, loanID int64) ([]models.LoanPayment, error) {
	return s.DB.Queries.ListLoanPayments(ctx, loanID)
}

func (s *Service) Totals(ctx context.Context) (models.LoanTotals, error) {
	loans, err := s.DB.Queries.ListLoans(ctx, dbq.LoanFilter{OpenOnly: true})
	if err != nil {
		return models.LoanTotals{}, err
	}
	return Totals(loans), nil
}

func Totals(loans []models.Loan) models.LoanTotals {
	t := models.LoanTotals{LentOutstanding: decimal.Zero, BorrowedOutstanding: decimal.Zero}
	for _, l := range loans {
		if l.Status == models.LoanPaid {
			continue
		}
		t.OpenLoans++
		if l.Direction == models.Lend {
			t.LentOutstanding = t.LentOutstanding.Add(l.RemainingAmount)
		} else {
			t.BorrowedOutstanding = t.BorrowedOutstanding.Add(l.RemainingAmount)
		}
	}
	return t
}

func ledgerParams(l models.Loan) dbq.UpdateLoanLedgerParams {
	return dbq.UpdateLoanLedgerParams{
		ID:              l.ID,
		Principal:       l.Principal,
		PaidAmount:      l.PaidAmount,
		RemainingAmount: l.RemainingAmount,
		Status:          l.Status,
	}
}
