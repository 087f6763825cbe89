// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package ledger_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"familybudget/internal/db"
	"familybudget/internal/dbq"
	"familybudget/internal/ledger"
	"familybudget/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vnd(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func TestApplyPayment_StatusTransitions(t *testing.T) {
	l := models.Loan{Principal: vnd(1_000_000), PaidAmount: decimal.Zero}
	ledger.Recompute(&l)
	assert.Equal(t, models.LoanActive, l.Status)
	assert.True(t, l.RemainingAmount.Equal(vnd(1_000_000)))

	l, err := ledger.ApplyPayment(l, vnd(400_000))
	require.NoError(t, err)
	assert.Equal(t, models.LoanPartial, l.Status)
	assert.True(t, l.RemainingAmount.Equal(vnd(600_000)))

	_, err = ledger.ApplyPayment(l, vnd(600_001))
	assert.ErrorIs(t, err, ledger.ErrOverpayment)

	_, err = ledger.ApplyPayment(l, decimal.Zero)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	l, err = ledger.ApplyPayment(l, vnd(600_000))
	require.NoError(t, err)
	assert.Equal(t, models.LoanPaid, l.Status)
	assert.True(t, l.RemainingAmount.IsZero())

	_, err = ledger.ApplyPayment(l, vnd(1))
	assert.ErrorIs(t, err, ledger.ErrLoanClosed)
}

func TestReversePayment(t *testing.T) {
	l := models.Loan{Principal: vnd(500), PaidAmount: vnd(500)}
	ledger.Recompute(&l)
	require.Equal(t, models.LoanPaid, l.Status)

	l, err := ledger.ReversePayment(l, vnd(200))
	require.NoError(t, err)
	assert.Equal(t, models.LoanPartial, l.Status)
	assert.True(t, l.RemainingAmount.Equal(vnd(200)))

	l, err = ledger.ReversePayment(l, vnd(300))
	require.NoError(t, err)
	assert.Equal(t, models.LoanActive, l.Status)
}

func TestChangePrincipal(t *testing.T) {
	l := models.Loan{Principal: vnd(1000), PaidAmount: vnd(400)}
	ledger.Recompute(&l)

	_, err := ledger.ChangePrincipal(l, vnd(300))
	assert.ErrorIs(t, err, ledger.ErrPrincipalBelowPaid)

	l, err = ledger.ChangePrincipal(l, vnd(400))
	require.NoError(t, err)
	assert.Equal(t, models.LoanPaid, l.Status)
}

func TestAuxTransaction(t *testing.T) {
	typ, cat, desc := ledger.AuxTransaction(models.Loan{Direction: models.Lend, Counterparty: "Cô Tư"})
	assert.Equal(t, models.Income, typ)
	assert.Equal(t, "Thu nợ", cat)
	assert.Equal(t, "Thu nợ - Cô Tư", desc)

	typ, cat, desc = ledger.AuxTransaction(models.Loan{Direction: models.Borrow, Counterparty: "Ngân hàng"})
	assert.Equal(t, models.Expense, typ)
	assert.Equal(t, "Trả nợ", cat)
	assert.Equal(t, "Trả nợ - Ngân hàng", desc)
}

func newService(t *testing.T) (*ledger.Service, int64) {
	t.Helper()
	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(database.Close)
	require.NoError(t, database.Migrate(context.Background()))

	u, err := database.Queries.CreateUser(context.Background(), dbq.CreateUserParams{
		Username: "bo", DisplayName: "Bố", PasswordHash: "x", Role: models.RoleAdmin,
	})
	require.NoError(t, err)

	svc := ledger.NewService(database)
	svc.Now = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, models.Location) }
	return svc, u.ID
}

func TestService_RecordPaymentWritesLedgerPaymentAndTransaction(t *testing.T) {
	svc, userID := newService(t)
	ctx := context.Background()

	loan, err := svc.CreateLoan(ctx, models.Loan{
		Direction: models.Lend, Counterparty: "Chú Ba", Principal: vnd(3_000_000),
		StartDate: "2026-09-01", DueDate: "2026-10-01",
	}, userID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanActive, loan.Status)
	assert.True(t, loan.Overdue)

	payment, updated, err := svc.RecordPayment(ctx, ledger.PaymentInput{
		LoanID: loan.ID, Amount: vnd(1_000_000), Note: "đợt 1", RecordTransaction: true, UserID: userID,
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", payment.Date)
	require.NotNil(t, payment.TransactionID)
	assert.Equal(t, models.LoanPartial, updated.Status)
	assert.True(t, updated.RemainingAmount.Equal(vnd(2_000_000)))

	stored, err := svc.Get(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, stored.PaidAmount.Equal(vnd(1_000_000)))
	assert.True(t, stored.RemainingAmount.Equal(vnd(2_000_000)))

	tx, err := svc.DB.Queries.GetTransaction(ctx, *payment.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.Income, tx.Type)
	assert.Equal(t, "Thu nợ", tx.Category)
	assert.Equal(t, "Thu nợ - Chú Ba: đợt 1", tx.Description)
	assert.Equal(t, models.SourceLoan, tx.Source)
	require.NotNil(t, tx.LoanID)
	assert.Equal(t, loan.ID, *tx.LoanID)

	_, _, err = svc.RecordPayment(ctx, ledger.PaymentInput{LoanID: loan.ID, Amount: vnd(2_000_000), UserID: userID})
	require.NoError(t, err)
	final, err := svc.Get(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanPaid, final.Status)
	assert.False(t, final.Overdue)

	txs, err := svc.DB.Queries.ListTransactions(ctx, dbq.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txs, 1, "second payment opted out of a transaction")
}

func TestService_OverpaymentRollsBack(t *testing.T) {
	svc, userID := newService(t)
	ctx := context.Background()

	loan, err := svc.CreateLoan(ctx, models.Loan{Direction: models.Borrow, Counterparty: "Ngân hàng", Principal: vnd(500_000)}, userID)
	require.NoError(t, err)

	_, _, err = svc.RecordPayment(ctx, ledger.PaymentInput{LoanID: loan.ID, Amount: vnd(600_000), RecordTransaction: true, UserID: userID})
	require.ErrorIs(t, err, ledger.ErrOverpayment)

	stored, err := svc.Get(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, stored.PaidAmount.IsZero())

	payments, err := svc.Payments(ctx, loan.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)

	count, err := svc.DB.Queries.CountTransactions(ctx, dbq.TransactionFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestService_MissingLoan(t *testing.T) {
	svc, userID := newService(t)
	_, _, err := svc.RecordPayment(context.Background(), ledger.PaymentInput{LoanID: 99, Amount: vnd(1), UserID: userID})
	assert.True(t, errors.Is(err, dbq.ErrNotFound))
}

func TestService_DeletePaymentRestoresLedger(t *testing.T) {
	svc, userID := newService(t)
	ctx := context.Background()

	loan, err := svc.CreateLoan(ctx, models.Loan{Direction: models.Borrow, Counterparty: "Dì Hai", Principal: vnd(800_000)}, userID)
	require.NoError(t, err)
	payment, _, err := svc.RecordPayment(ctx, ledger.PaymentInput{LoanID: loan.ID, Amount: vnd(800_000), RecordTransaction: true, UserID: userID})
	require.NoError(t, err)

	_, err = svc.DeletePayment(ctx, loan.ID+1, payment.ID)
	assert.ErrorIs(t, err, ledger.ErrPaymentMismatch)

	restored, err := svc.DeletePayment(ctx, loan.ID, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanActive, restored.Status)
	assert.True(t, restored.RemainingAmount.Equal(vnd(800_000)))

	_, err = svc.DB.Queries.GetTransaction(ctx, *payment.TransactionID)
	assert.ErrorIs(t, err, dbq.ErrNotFound)
}

func TestService_UpdateAndDeleteLoan(t *testing.T) {
	svc, userID := newService(t)
	ctx := context.Background()

	loan, err := svc.CreateLoan(ctx, models.Loan{Direction: models.Lend, Counterparty: "Anh Tâm", Principal: vnd(1_000_000)}, userID)
	require.NoError(t, err)
	_, _, err = svc.RecordPayment(ctx, ledger.PaymentInput{LoanID: loan.ID, Amount: vnd(600_000), RecordTransaction: true, UserID: userID})
	require.NoError(t, err)

	_, err = svc.UpdateLoan(ctx, loan.ID, models.Loan{Counterparty: "Anh Tâm", Principal: vnd(500_000)})
	assert.ErrorIs(t, err, ledger.ErrPrincipalBelowPaid)

	updated, err := svc.UpdateLoan(ctx, loan.ID, models.Loan{Counterparty: "Anh Tâm (xóm)", Principal: vnd(600_000), Direction: models.Borrow})
	require.NoError(t, err)
	assert.Equal(t, models.Lend, updated.Direction)
	assert.Equal(t, "Anh Tâm (xóm)", updated.Counterparty)
	assert.Equal(t, models.LoanPaid, updated.Status)

	totals, err := svc.Totals(ctx)
	require.NoError(t, err)
	assert.Zero(t, totals.OpenLoans)

	require.NoError(t, svc.DeleteLoan(ctx, loan.ID))
	_, err = svc.Get(ctx, loan.ID)
	assert.ErrorIs(t, err, dbq.ErrNotFound)

	count, err := svc.DB.Queries.CountTransactions(ctx, dbq.TransactionFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestTotals(t *testing.T) {
	loans := []models.Loan{
		{Direction: models.Lend, RemainingAmount: vnd(100), Status: models.LoanActive},
		{Direction: models.Lend, RemainingAmount: vnd(50), Status: models.LoanPartial},
		{Direction: models.Borrow, RemainingAmount: vnd(70), Status: models.LoanActive},
		{Direction: models.Borrow, RemainingAmount: vnd(0), Status: models.LoanPaid},
	}
	totals := ledger.Totals(loans)
	assert.Equal(t, 3, totals.OpenLoans)
	assert.True(t, totals.LentOutstanding.Equal(vnd(150)))
	assert.True(t, totals.BorrowedOutstanding.Equal(vnd(70)))
}
