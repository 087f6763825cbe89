// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.

// Package ledger keeps a loan's principal, paid and remaining amounts
// consistent with its payments and the transactions they generate.
package ledger

import (
	"errors"

	"familybudget/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount      = errors.New("payment amount must be positive")
	ErrOverpayment        = errors.New("payment exceeds the remaining balance")
	ErrLoanClosed         = errors.New("loan is already paid off")
	ErrLoanManaged        = errors.New("transaction is managed by a loan payment")
	ErrPrincipalBelowPaid = errors.New("principal is below the amount already paid")
	ErrPaymentMismatch    = errors.New("payment does not belong to this loan")
)

// Recompute derives remaining and status from principal and paid.
func Recompute(l *models.Loan) {
	l.RemainingAmount = l.Principal.Sub(l.PaidAmount)
	switch {
	case !l.RemainingAmount.IsPositive():
		l.RemainingAmount = decimal.Zero
		l.Status = models.LoanPaid
	case l.PaidAmount.IsPositive():
		l.Status = models.LoanPartial
	default:
		l.Status = models.LoanActive
	}
}

func ApplyPayment(l models.Loan, amount decimal.Decimal) (models.Loan, error) {
	if l.Status == models.LoanPaid {
		return l, ErrLoanClosed
	}
	if !amount.IsPositive() {
		return l, ErrInvalidAmount
	}
	if amount.GreaterThan(l.RemainingAmount) {
		return l, ErrOverpayment
	}
	l.PaidAmount = l.PaidAmount.Add(amount)
	Recompute(&l)
	return l, nil
}

func ReversePayment(l models.Loan, amount decimal.Decimal) (models.Loan, error) {
	if !amount.IsPositive() {
		return l, ErrInvalidAmount
	}
	l.PaidAmount = l.PaidAmount.Sub(amount)
	if l.PaidAmount.IsNegative() {
		l.PaidAmount = decimal.Zero
	}
	Recompute(&l)
	return l, nil
}

func ChangePrincipal(l models.Loan, principal decimal.Decimal) (models.Loan, error) {
	if !principal.IsPositive() {
		return l, ErrInvalidAmount
	}
	if principal.LessThan(l.PaidAmount) {
		return l, ErrPrincipalBelowPaid
	}
	l.Principal = principal
	Recompute(&l)
	return l, nil
}

// AuxTransaction describes the income/expense row a payment produces:
// collecting on money we lent is income, repaying money we borrowed is an
// expense.
func AuxTransaction(l models.Loan) (models.TxType, string, string) {
	if l.Direction == models.Lend {
		return models.Income, models.LoanIncomeCategory, models.LoanIncomeCategory + " - " + l.Counterparty
	}
	return models.Expense, models.LoanExpenseCategory, models.LoanExpenseCategory + " - " + l.Counterparty
}
